// Package configstore defines the storage seam for fleet configuration.
package configstore

// ConfigStore loads and saves a configuration document. Implementations
// decide the encoding and the medium.
type ConfigStore interface {
	Load(out any) error
	Save(data any) error
}
