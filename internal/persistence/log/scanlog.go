// Package log persists per-scan result logs as compressed JSON lines.
package log

import "time"

// ScanEntry is one line of the scan log.
type ScanEntry struct {
	Time          time.Time `json:"time"`
	Path          string    `json:"path"`
	Format        string    `json:"format"`
	SHA256        string    `json:"sha256,omitempty"`
	Valid         bool      `json:"valid"`
	ParseMode     string    `json:"parse_mode"`
	Outcome       string    `json:"outcome"`
	Warnings      int       `json:"warnings"`
	Errors        int       `json:"errors"`
	LeadingError  string    `json:"leading_error,omitempty"`
	ReportPath    string    `json:"report_path,omitempty"`
	ThumbPath     string    `json:"thumb_path,omitempty"`
	MeshCachePath string    `json:"mesh_cache_path,omitempty"`
}

// Outcome values.
const (
	OutcomeProcessed = "processed"
	OutcomeCached    = "cached"
	OutcomeRemoved   = "removed"
	OutcomeFailed    = "failed"
)

// ScanLogger writes one entry per file touched by a scan.
type ScanLogger struct{ w *HourlyWriter }

func NewScanLogger(dir string) *ScanLogger {
	return &ScanLogger{w: NewHourlyWriter(dir, "scan")}
}

func (l *ScanLogger) WriteEntry(e ScanEntry) error { return l.w.Write(e) }
func (l *ScanLogger) Path() string                 { return l.w.Path() }
func (l *ScanLogger) Close() error                 { return l.w.Close() }
