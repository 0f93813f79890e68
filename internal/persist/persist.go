// Package persist writes the finalized report as a machine-readable JSON
// artifact, behind small Serializer/Writer seams so tests can substitute
// either side.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrej220/fleetrun/internal/report"
)

type Serializer interface {
	Marshal(data any) ([]byte, error)
}

type Writer interface {
	Write(filename string, data []byte) error
}

// JSONSerializer produces indented JSON.
type JSONSerializer struct {
	Prefix, Indent string
}

func (s JSONSerializer) Marshal(data any) ([]byte, error) {
	return json.MarshalIndent(data, s.Prefix, s.Indent)
}

// FileWriter writes artifacts to disk, creating parent directories.
type FileWriter struct {
	Overwrite bool
}

func (w FileWriter) Write(filename string, data []byte) error {
	if filename == "" {
		return os.ErrInvalid
	}
	if _, err := os.Stat(filename); err == nil && !w.Overwrite {
		return os.ErrExist
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// resultDoc mirrors report.Result with a float-seconds duration, matching the
// log sink's unit.
type resultDoc struct {
	Server   string  `json:"server"`
	Command  string  `json:"command"`
	Output   string  `json:"output"`
	Stderr   string  `json:"stderr,omitempty"`
	Error    string  `json:"error,omitempty"`
	Success  bool    `json:"success"`
	Duration float64 `json:"duration"`
}

type reportDoc struct {
	Results      []resultDoc `json:"results"`
	AllSucceeded bool        `json:"allSucceeded"`
	AnySucceeded bool        `json:"anySucceeded"`
}

// WriteReport persists the report to filename using the given serializer and
// writer.
func WriteReport(set report.ReportSet, filename string, s Serializer, w Writer) error {
	doc := reportDoc{
		Results:      make([]resultDoc, 0, len(set.Results)),
		AllSucceeded: set.AllSucceeded,
		AnySucceeded: set.AnySucceeded,
	}
	for _, r := range set.Results {
		doc.Results = append(doc.Results, resultDoc{
			Server:   r.Server,
			Command:  r.Command,
			Output:   r.Output,
			Stderr:   r.Stderr,
			Error:    r.Error,
			Success:  r.Success,
			Duration: r.Duration.Seconds(),
		})
	}

	data, err := s.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := w.Write(filename, data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
