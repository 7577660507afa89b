// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/ingestion"
	"github.com/poiesic/voxbank/metadata"
)

// Default values.
const (
	DefaultMetadataFile     = "metadata.csv"
	DefaultAudioDir         = "dataset_audios"
	DefaultStorePath        = "voxbank_db"
	DefaultCollection       = "audio_features_collection"
	DefaultDocumentTemplate = ingestion.DefaultDocumentTemplate
	DefaultReportInterval   = 10
)

// Config holds the settings for ingestion and search.
type Config struct {
	// MetadataFile is the path of the delimited metadata table.
	MetadataFile string `yaml:"metadata_file"`

	// AudioDir is the directory holding the recordings named by the table.
	AudioDir string `yaml:"audio_dir"`

	// StorePath is the BadgerDB directory. Created if absent.
	StorePath string `yaml:"store_path"`

	// Collection is the named collection receiving the vectors.
	Collection string `yaml:"collection"`

	// IDPrefix is prepended to the extension-less filename to form item IDs.
	IDPrefix string `yaml:"id_prefix"`

	// RequiredColumns must be present in the metadata header after
	// normalization. Must include "filename".
	RequiredColumns []string `yaml:"required_columns"`

	// DocumentTemplate renders the stored document text. Must contain one %s.
	DocumentTemplate string `yaml:"document_template"`

	// ReportInterval is the number of rows between progress lines.
	// Zero disables progress output.
	ReportInterval int `yaml:"report_interval"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithMetadataFile sets the metadata table path.
func WithMetadataFile(path string) ConfigOption {
	return func(c *Config) {
		c.MetadataFile = path
	}
}

// WithAudioDir sets the audio directory.
func WithAudioDir(dir string) ConfigOption {
	return func(c *Config) {
		c.AudioDir = dir
	}
}

// WithStorePath sets the store directory.
func WithStorePath(path string) ConfigOption {
	return func(c *Config) {
		c.StorePath = path
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) ConfigOption {
	return func(c *Config) {
		c.Collection = name
	}
}

// WithIDPrefix sets the item ID prefix.
func WithIDPrefix(prefix string) ConfigOption {
	return func(c *Config) {
		c.IDPrefix = prefix
	}
}

// WithRequiredColumns replaces the required metadata columns.
func WithRequiredColumns(columns ...string) ConfigOption {
	return func(c *Config) {
		c.RequiredColumns = columns
	}
}

// WithDocumentTemplate sets the stored document template.
func WithDocumentTemplate(template string) ConfigOption {
	return func(c *Config) {
		c.DocumentTemplate = template
	}
}

// WithReportInterval sets the progress reporting interval in rows.
func WithReportInterval(rows int) ConfigOption {
	return func(c *Config) {
		c.ReportInterval = rows
	}
}

// DefaultConfig returns a Config with paths relative to the working directory.
func DefaultConfig() *Config {
	return &Config{
		MetadataFile:     DefaultMetadataFile,
		AudioDir:         DefaultAudioDir,
		StorePath:        DefaultStorePath,
		Collection:       DefaultCollection,
		IDPrefix:         core.DefaultIDPrefix,
		RequiredColumns:  slices.Clone(metadata.DefaultRequiredColumns),
		DocumentTemplate: DefaultDocumentTemplate,
		ReportInterval:   DefaultReportInterval,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return cfg
}

// Apply applies options on top of the current values.
func (c *Config) Apply(opts ...ConfigOption) {
	for _, opt := range opts {
		opt(c)
	}
}

// Load reads a YAML file and overlays it on the defaults. Keys absent from
// the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Normalize trims whitespace and normalizes required column names the way
// metadata headers are normalized. Duplicate columns are dropped.
func (c *Config) Normalize() {
	c.MetadataFile = strings.TrimSpace(c.MetadataFile)
	c.AudioDir = strings.TrimSpace(c.AudioDir)
	c.StorePath = strings.TrimSpace(c.StorePath)
	c.Collection = strings.TrimSpace(c.Collection)

	columns := make([]string, 0, len(c.RequiredColumns))
	for _, col := range c.RequiredColumns {
		col = metadata.NormalizeColumn(col)
		if col == "" || slices.Contains(columns, col) {
			continue
		}
		columns = append(columns, col)
	}
	c.RequiredColumns = columns
}

// Validate checks the settings needed to open the store.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.StorePath == "" {
		return errors.New("config: StorePath is required")
	}
	if c.Collection == "" {
		return errors.New("config: Collection is required")
	}
	if strings.Contains(c.Collection, ":") {
		return fmt.Errorf("config: Collection %q must not contain ':'", c.Collection)
	}
	if !slices.Contains(c.RequiredColumns, core.ColumnFilename) {
		return errors.New("config: RequiredColumns must include filename")
	}
	if strings.Count(c.DocumentTemplate, "%s") != 1 || strings.Count(c.DocumentTemplate, "%") != 1 {
		return fmt.Errorf("config: DocumentTemplate %q must contain exactly one %%s", c.DocumentTemplate)
	}
	if c.ReportInterval < 0 {
		return errors.New("config: ReportInterval must not be negative")
	}
	return nil
}

// ValidateIngest checks the settings needed for an ingestion run.
func (c *Config) ValidateIngest() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.MetadataFile == "" {
		return errors.New("config: MetadataFile is required")
	}
	if c.AudioDir == "" {
		return errors.New("config: AudioDir is required")
	}
	return nil
}
