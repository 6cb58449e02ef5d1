package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPluginNotFound is returned when a plugin name is not registered
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrDependencyCycle matches any *DependencyCycleError
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrNoBackups is returned when a restore-latest finds nothing to restore
	ErrNoBackups = errors.New("no backups found")
)

// DependencyCycleError reports a cycle found while ordering plugins.
// Path starts and ends with the same plugin name.
type DependencyCycleError struct {
	Path []string
}

// Error implements the error interface
func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// Is lets errors.Is match ErrDependencyCycle
func (e *DependencyCycleError) Is(target error) bool {
	return target == ErrDependencyCycle
}

// BackupIOError wraps a failure to write a bundle
type BackupIOError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *BackupIOError) Error() string {
	return fmt.Sprintf("backup %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *BackupIOError) Unwrap() error {
	return e.Err
}

// RestoreIOError wraps a failure to read or parse a bundle
type RestoreIOError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *RestoreIOError) Error() string {
	return fmt.Sprintf("restore %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *RestoreIOError) Unwrap() error {
	return e.Err
}

// panicError converts a recovered value into an error
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

// safeCall runs fn and turns a panic into an error
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn()
}
