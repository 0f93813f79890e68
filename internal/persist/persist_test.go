package persist_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrej220/fleetrun/internal/persist"
	"github.com/andrej220/fleetrun/internal/report"
)

type mockSerializer struct {
	bytes []byte
	err   error
}

func (s mockSerializer) Marshal(data any) ([]byte, error) { return s.bytes, s.err }

type mockWriter struct {
	data map[string][]byte
	err  error
}

func (w *mockWriter) Write(filename string, data []byte) error {
	if w.data == nil {
		w.data = make(map[string][]byte)
	}
	w.data[filename] = data
	return w.err
}

func sampleSet() report.ReportSet {
	return report.ReportSet{
		Results: []report.Result{{
			Server:   "alpha",
			Command:  "uptime",
			Output:   "up\n",
			Success:  true,
			Duration: 1500 * time.Millisecond,
		}},
		AllSucceeded: true,
		AnySucceeded: true,
	}
}

func TestWriteReport(t *testing.T) {
	tests := []struct {
		name       string
		serializer persist.Serializer
		writer     *mockWriter
		wantErr    bool
	}{
		{"valid input", mockSerializer{bytes: []byte("{}")}, &mockWriter{}, false},
		{"serializer error", mockSerializer{err: errors.New("bad")}, &mockWriter{}, true},
		{"writer error", mockSerializer{bytes: []byte("{}")}, &mockWriter{err: errors.New("disk full")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := persist.WriteReport(sampleSet(), "report.json", tt.serializer, tt.writer)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Contains(t, tt.writer.data, "report.json")
			}
		})
	}
}

func TestWriteReportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	err := persist.WriteReport(sampleSet(), path,
		persist.JSONSerializer{Indent: "    "},
		persist.FileWriter{Overwrite: true})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Results []struct {
			Server   string  `json:"server"`
			Duration float64 `json:"duration"`
			Success  bool    `json:"success"`
		} `json:"results"`
		AllSucceeded bool `json:"allSucceeded"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Results, 1)
	assert.Equal(t, "alpha", doc.Results[0].Server)
	assert.InDelta(t, 1.5, doc.Results[0].Duration, 0.001)
	assert.True(t, doc.AllSucceeded)
}

func TestFileWriterRespectsOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	w := persist.FileWriter{Overwrite: false}
	assert.ErrorIs(t, w.Write(path, []byte("new")), os.ErrExist)

	w.Overwrite = true
	assert.NoError(t, w.Write(path, []byte("new")))
}
