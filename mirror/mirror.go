// Package mirror replicates the configuration document to off-host
// destinations so a lost disk does not mean a lost config. Destinations
// receive the full JSON document after every observed change.
package mirror

import "context"

// Destination is the interface for a mirror target (S3, local path).
type Destination interface {
	// Write sends the JSON document to the destination.
	Write(ctx context.Context, data []byte) error
}

// Config holds the mirror settings loaded from the config file. A
// destination is active when its fields are set: Bucket enables the S3
// mirror, Path enables the local file mirror.
type Config struct {
	Bucket   string `yaml:"bucket"`
	Key      string `yaml:"key"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Path     string `yaml:"path"`
}
