// Package outputs renders bus events and run results for a terminal.
package outputs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/sliink/tuner/internal/core"
	"github.com/sliink/tuner/internal/model"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Format selects how the console reporter writes
type Format string

const (
	// FormatText writes human-readable lines
	FormatText Format = "text"
	// FormatJSON writes one JSON document per line
	FormatJSON Format = "json"
)

// Options configures a ConsoleReporter
type Options struct {
	Format Format
	// Colorize adds ANSI colors to text output
	Colorize bool
	// Verbose also renders per-setting change events
	Verbose bool
}

// ColorSupported reports whether w is a terminal
func ColorSupported(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ConsoleReporter writes bus events and results to a writer. It is an
// event handler and is subscribed to the event types it renders.
type ConsoleReporter struct {
	out    io.Writer
	format Format
	color  bool
	detail bool
	mutex  sync.Mutex
}

// NewConsoleReporter creates a reporter writing to out
func NewConsoleReporter(out io.Writer, opts Options) *ConsoleReporter {
	format := opts.Format
	if format != FormatJSON {
		format = FormatText
	}
	return &ConsoleReporter{
		out:    out,
		format: format,
		color:  opts.Colorize && format == FormatText,
		detail: opts.Verbose,
	}
}

// EventTypes lists the event types the reporter renders
func (r *ConsoleReporter) EventTypes() []model.EventType {
	types := []model.EventType{
		model.EventOptimizationStarted,
		model.EventOptimizationFailed,
		model.EventOptimizerStarted,
		model.EventOptimizerCompleted,
		model.EventBackupCompleted,
		model.EventRestoreStarted,
		model.EventRestoreCompleted,
		model.EventProgressUpdate,
		model.EventErrorOccurred,
		model.EventWarningOccurred,
	}
	if r.detail {
		types = append(types, model.EventServiceDisabled, model.EventRegistryChanged)
	}
	return types
}

// Subscribe registers the reporter for every type it renders
func (r *ConsoleReporter) Subscribe(bus *core.EventBus) {
	for _, eventType := range r.EventTypes() {
		bus.Subscribe(eventType, r)
	}
}

// CanHandle reports whether the reporter renders an event type
func (r *ConsoleReporter) CanHandle(eventType model.EventType) bool {
	for _, t := range r.EventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

// Handle renders one event
func (r *ConsoleReporter) Handle(event core.Event) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.format == FormatJSON {
		return r.writeJSON(event)
	}

	line := r.eventLine(event)
	if line == "" {
		return nil
	}
	_, err := fmt.Fprintln(r.out, line)
	return err
}

func (r *ConsoleReporter) eventLine(event core.Event) string {
	d := event.Data
	switch event.Type {
	case model.EventOptimizationStarted:
		return r.paint(colorCyan, fmt.Sprintf("Starting optimization run %v", d["run_id"]))
	case model.EventOptimizationFailed:
		return r.paint(colorRed, fmt.Sprintf("Optimization failed: %v", d["error"]))
	case model.EventOptimizerStarted:
		return fmt.Sprintf("[%v/%v] %v", d["index"], d["total"], d["plugin_name"])
	case model.EventOptimizerCompleted:
		status := fmt.Sprint(d["status"])
		return fmt.Sprintf("      %s %v: %v changes, %v errors (%sms)",
			r.paint(statusColor(model.OptimizationStatus(status)), status),
			d["plugin_name"], d["changes_count"], d["errors_count"], formatDuration(d["duration_ms"]))
	case model.EventServiceDisabled:
		return r.paint(colorGray, fmt.Sprintf("      service %v disabled (was %v)", d["service"], d["previous"]))
	case model.EventRegistryChanged:
		return r.paint(colorGray, fmt.Sprintf("      set %v\\%v = %v", d["key"], d["name"], d["value"]))
	case model.EventBackupCompleted:
		return fmt.Sprintf("Backup written to %v (%v plugins)", d["backup_file"], d["plugins_backed_up"])
	case model.EventRestoreStarted:
		return r.paint(colorCyan, fmt.Sprintf("Restoring from %v", d["backup_file"]))
	case model.EventRestoreCompleted:
		return fmt.Sprintf("Restore finished: %v of %v successful", d["successful"], d["total"])
	case model.EventProgressUpdate:
		return fmt.Sprintf("      %v (%v/%v)", d["message"], d["current"], d["total"])
	case model.EventErrorOccurred:
		return r.paint(colorRed, fmt.Sprintf("      error in %v: %v", d["plugin_name"], d["message"]))
	case model.EventWarningOccurred:
		return r.paint(colorYellow, fmt.Sprintf("      warning in %v: %v", d["plugin_name"], d["message"]))
	}
	return ""
}

func (r *ConsoleReporter) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.out, string(data))
	return err
}

func (r *ConsoleReporter) paint(color, s string) string {
	if !r.color {
		return s
	}
	return color + s + colorReset
}

func statusColor(status model.OptimizationStatus) string {
	switch status {
	case model.OptimizationSuccess:
		return colorGreen
	case model.OptimizationPartial, model.OptimizationSkipped:
		return colorYellow
	case model.OptimizationFailed:
		return colorRed
	}
	return colorReset
}

func formatDuration(v interface{}) string {
	if ms, ok := v.(float64); ok {
		return strconv.FormatFloat(ms, 'f', 1, 64)
	}
	return fmt.Sprint(v)
}

// PrintSummary writes the outcome of a run
func (r *ConsoleReporter) PrintSummary(report *model.RunReport) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.format == FormatJSON {
		return r.writeJSON(report)
	}

	s := report.Summary
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.paint(colorCyan, "Optimization summary"))
	fmt.Fprintf(r.out, "  Plugins:  %d (%d successful, %d partial, %d failed, %d skipped)\n",
		s.TotalPlugins, s.Successful, s.Partial, s.Failed, s.Skipped)
	fmt.Fprintf(r.out, "  Changes:  %d\n", s.TotalChanges)
	fmt.Fprintf(r.out, "  Errors:   %d\n", s.TotalErrors)
	fmt.Fprintf(r.out, "  Warnings: %d\n", s.TotalWarnings)
	fmt.Fprintf(r.out, "  Duration: %sms\n", formatDuration(s.DurationMs))
	if report.BackupFile != "" {
		fmt.Fprintf(r.out, "  Backup:   %s\n", report.BackupFile)
	}

	for _, result := range report.Results {
		for _, e := range result.Errors {
			fmt.Fprintln(r.out, r.paint(colorRed, fmt.Sprintf("  %s: %s", result.PluginName, e)))
		}
		for _, w := range result.Warnings {
			fmt.Fprintln(r.out, r.paint(colorYellow, fmt.Sprintf("  %s: %s", result.PluginName, w)))
		}
	}
	return nil
}

// PrintRestoreReport writes the outcome of a restore
func (r *ConsoleReporter) PrintRestoreReport(report *model.RestoreReport) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.format == FormatJSON {
		return r.writeJSON(report)
	}

	fmt.Fprintf(r.out, "Restored %d of %d plugins from %s\n", report.Successful, report.Total, report.BackupFile)
	for _, e := range report.Errors {
		fmt.Fprintln(r.out, r.paint(colorRed, "  "+e))
	}
	return nil
}

// PrintPlugins writes plugin metadata in execution order
func (r *ConsoleReporter) PrintPlugins(plugins []model.PluginInfo) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.format == FormatJSON {
		return r.writeJSON(plugins)
	}

	table := newTable(r.out, []string{"#", "Name", "Priority", "Enabled", "Depends on", "Description"})
	for i, p := range plugins {
		deps := "-"
		if len(p.Dependencies) > 0 {
			deps = fmt.Sprint(p.Dependencies)
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			p.Name,
			strconv.Itoa(p.Priority),
			strconv.FormatBool(p.Enabled),
			deps,
			p.Description,
		})
	}
	table.Render()
	return nil
}

// PrintBackups writes bundle listings, newest first
func (r *ConsoleReporter) PrintBackups(backups []model.BackupInfo) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.format == FormatJSON {
		return r.writeJSON(backups)
	}

	if len(backups) == 0 {
		_, err := fmt.Fprintln(r.out, "No backups found")
		return err
	}

	table := newTable(r.out, []string{"Name", "Size", "Modified"})
	for _, b := range backups {
		table.Append([]string{
			b.Name,
			formatSize(b.Size),
			b.Modified.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return nil
}

// PrintMessage writes a plain line, or a {"message": ...} document in JSON mode
func (r *ConsoleReporter) PrintMessage(format string, args ...interface{}) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	msg := fmt.Sprintf(format, args...)
	if r.format == FormatJSON {
		return r.writeJSON(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(r.out, msg)
	return err
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(true)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
