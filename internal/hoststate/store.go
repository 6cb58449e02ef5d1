// Package hoststate holds the machine state the optimizers act on: system
// settings addressed by key and value name, and service startup types. The
// store persists to a YAML file so changes survive between invocations.
package hoststate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// StartupType is how a service is started
type StartupType string

const (
	// StartupAutomatic starts the service at boot
	StartupAutomatic StartupType = "automatic"
	// StartupManual starts the service on demand
	StartupManual StartupType = "manual"
	// StartupDisabled prevents the service from starting
	StartupDisabled StartupType = "disabled"
)

// Valid reports whether t is a known startup type
func (t StartupType) Valid() bool {
	switch t {
	case StartupAutomatic, StartupManual, StartupDisabled:
		return true
	}
	return false
}

// ErrUnknownService is returned when a service is not installed
var ErrUnknownService = errors.New("unknown service")

// Host is the state the optimizers read and change
type Host interface {
	// Setting returns a value and whether it is set
	Setting(key, name string) (int, bool)
	// SetSetting writes a value, creating the key when needed
	SetSetting(key, name string, value int) error
	// DeleteSetting removes a value; removing an absent value is not an error
	DeleteSetting(key, name string) error
	// ServiceStartup returns a service's startup type and whether it is installed
	ServiceStartup(name string) (StartupType, bool)
	// SetServiceStartup changes the startup type of an installed service
	SetServiceStartup(name string, startup StartupType) error
}

// DefaultServices is the service set a fresh state file starts with
var DefaultServices = map[string]StartupType{
	"DiagTrack":        StartupAutomatic,
	"dmwappushservice": StartupManual,
	"WSearch":          StartupAutomatic,
	"XblAuthManager":   StartupManual,
	"XblGameSave":      StartupManual,
	"XboxGipSvc":       StartupManual,
	"XboxNetApiSvc":    StartupManual,
	"Spooler":          StartupAutomatic,
	"wisvc":            StartupManual,
	"SysMain":          StartupAutomatic,
	"BITS":             StartupManual,
	"wuauserv":         StartupManual,
	"EventLog":         StartupAutomatic,
	"WinDefend":        StartupAutomatic,
	"WdNisSvc":         StartupManual,
	"Sense":            StartupManual,
}

// state is the on-disk layout
type state struct {
	Settings map[string]map[string]int `yaml:"settings"`
	Services map[string]StartupType    `yaml:"services"`
}

// Store is a Host backed by a YAML file. A store without a path keeps its
// state in memory only.
type Store struct {
	path  string
	state state
	mutex sync.RWMutex
}

// NewMemoryStore creates an in-memory store seeded with the given services
func NewMemoryStore(services map[string]StartupType) *Store {
	s := &Store{state: newState()}
	for name, startup := range services {
		s.state.Services[name] = startup
	}
	return s
}

// Open loads the state file at path. A missing file starts from the
// default services and is written on the first change.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is required")
	}

	s := &Store{path: path, state: newState()}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		for name, startup := range DefaultServices {
			s.state.Services[name] = startup
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading state file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("error parsing state file: %w", err)
	}
	if s.state.Settings == nil {
		s.state.Settings = make(map[string]map[string]int)
	}
	if s.state.Services == nil {
		s.state.Services = make(map[string]StartupType)
	}
	return s, nil
}

func newState() state {
	return state{
		Settings: make(map[string]map[string]int),
		Services: make(map[string]StartupType),
	}
}

// Path returns the state file path, empty for a memory store
func (s *Store) Path() string {
	return s.path
}

// Setting returns a value and whether it is set
func (s *Store) Setting(key, name string) (int, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.state.Settings[key][name]
	return value, exists
}

// SetSetting writes a value and persists the state. A failed save leaves
// the previous value in place.
func (s *Store) SetSetting(key, name string, value int) error {
	if key == "" || name == "" {
		return fmt.Errorf("setting key and name are required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, keyExists := s.state.Settings[key]
	if !keyExists {
		values = make(map[string]int)
		s.state.Settings[key] = values
	}
	previous, hadValue := values[name]
	values[name] = value

	if err := s.saveLocked(); err != nil {
		switch {
		case hadValue:
			values[name] = previous
		case keyExists:
			delete(values, name)
		default:
			delete(s.state.Settings, key)
		}
		return err
	}
	return nil
}

// DeleteSetting removes a value and persists the state
func (s *Store) DeleteSetting(key, name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, exists := s.state.Settings[key]
	if !exists {
		return nil
	}
	previous, exists := values[name]
	if !exists {
		return nil
	}
	delete(values, name)
	if len(values) == 0 {
		delete(s.state.Settings, key)
	}

	if err := s.saveLocked(); err != nil {
		values[name] = previous
		s.state.Settings[key] = values
		return err
	}
	return nil
}

// ServiceStartup returns a service's startup type
func (s *Store) ServiceStartup(name string) (StartupType, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	startup, exists := s.state.Services[name]
	return startup, exists
}

// SetServiceStartup changes an installed service's startup type
func (s *Store) SetServiceStartup(name string, startup StartupType) error {
	if !startup.Valid() {
		return fmt.Errorf("invalid startup type %q", startup)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, exists := s.state.Services[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	s.state.Services[name] = startup

	if err := s.saveLocked(); err != nil {
		s.state.Services[name] = previous
		return err
	}
	return nil
}

// Services returns the installed service names in sorted order
func (s *Store) Services() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.state.Services))
	for name := range s.state.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the state file
func (s *Store) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.saveLocked()
}

// saveLocked assumes the lock is held
func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(&s.state)
	if err != nil {
		return fmt.Errorf("error encoding state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating state directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("error writing state file: %w", err)
	}
	return nil
}
