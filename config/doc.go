// Package config holds the settings shared by the voxbank commands: where
// the metadata and audio live, which store and collection receive the
// vectors, and how ingestion reports progress.
//
// Settings come from DefaultConfig, optionally overlaid with a YAML file
// read by Load, and finally with functional options (typically derived from
// command line flags).
package config
