// Package filestore stores fleet configuration as a YAML file. Saves are
// atomic (temp file + rename) and Watch reports in-place edits.
package filestore

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/andrej220/fleetrun/pkg/config/configstore"
)

var _ configstore.ConfigStore = (*FileStore)(nil)

type FileStore struct {
	Path string
}

func New(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load(out any) error {
	if out == nil {
		return fmt.Errorf("load: output parameter must not be nil")
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("load: read %s: %w", f.Path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("load: config file %s is empty", f.Path)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("load: parse YAML in %s: %w", f.Path, err)
	}
	return nil
}

func (f *FileStore) Save(in any) error {
	if in == nil {
		return fmt.Errorf("save: input parameter must not be nil")
	}

	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("save: marshal YAML: %w", err)
	}

	// Write to a temp file first, then rename into place so readers never
	// observe a partially written config.
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("save: write temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("save: replace %s: %w", f.Path, err)
	}
	return nil
}

// Watch invokes onChange whenever the file is rewritten. The watcher runs
// until the process exits.
func (f *FileStore) Watch(onChange func()) error {
	if onChange == nil {
		return fmt.Errorf("watch: onChange callback must not be nil")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := watcher.Add(f.Path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch: add %s: %w", f.Path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
