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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/poiesic/voxbank"
	"github.com/poiesic/voxbank/config"
	"github.com/poiesic/voxbank/ingestion"
	"github.com/poiesic/voxbank/metadata"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to BadgerDB database directory (default \"" + config.DefaultStorePath + "\")",
	}
}

func collectionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "collection",
		Usage: "Collection name (default \"" + config.DefaultCollection + "\")",
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "voxbank",
		Usage: "Acoustic feature vector store for voice recordings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Extract features from the recordings listed in a metadata file and store them",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "metadata",
						Aliases: []string{"m"},
						Usage:   "Path to the metadata CSV file (default \"" + config.DefaultMetadataFile + "\")",
					},
					&cli.StringFlag{
						Name:    "audio-dir",
						Aliases: []string{"a"},
						Usage:   "Directory holding the audio files (default \"" + config.DefaultAudioDir + "\")",
					},
					dbFlag(),
					collectionFlag(),
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N rows, 0 disables progress output",
						Value: config.DefaultReportInterval,
					},
				},
			},
			{
				Name:   "count",
				Usage:  "Print the number of records in a collection",
				Action: countCommand,
				Flags:  []cli.Flag{dbFlag(), collectionFlag()},
			},
			{
				Name:   "similar",
				Usage:  "Find the stored recordings closest to an audio file",
				Action: similarCommand,
				Flags: []cli.Flag{
					dbFlag(),
					collectionFlag(),
					&cli.StringFlag{
						Name:     "audio",
						Usage:    "Audio file to compare",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the last ingestion run and the record count of a collection",
				Action: statusCommand,
				Flags:  []cli.Flag{dbFlag(), collectionFlag()},
			},
		},
	}
}

// loadConfig builds the configuration from defaults, the optional YAML file
// and any flags set explicitly on the command line, in that order.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var opts []config.ConfigOption
	if c.IsSet("metadata") {
		opts = append(opts, config.WithMetadataFile(c.String("metadata")))
	}
	if c.IsSet("audio-dir") {
		opts = append(opts, config.WithAudioDir(c.String("audio-dir")))
	}
	if c.IsSet("db") {
		opts = append(opts, config.WithStorePath(c.String("db")))
	}
	if c.IsSet("collection") {
		opts = append(opts, config.WithCollection(c.String("collection")))
	}
	if c.IsSet("report-interval") {
		opts = append(opts, config.WithReportInterval(c.Int("report-interval")))
	}
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDatabase(c *cli.Context) (*voxbank.Database, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return openStore(cfg)
}

func openStore(cfg *config.Config) (*voxbank.Database, error) {
	db, err := voxbank.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func ingestCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The table is validated before the store is touched, so a bad
	// metadata file leaves no store directory behind.
	table, err := metadata.Load(cfg.MetadataFile, cfg.RequiredColumns)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []ingestion.Option
	if cfg.ReportInterval > 0 {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter, cfg.ReportInterval))
	}
	pipeline, err := db.NewIngestionPipeline(opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.StorePath)
	fmt.Fprintf(c.App.ErrWriter, "Collection: %s\n", cfg.Collection)
	fmt.Fprintf(c.App.ErrWriter, "Metadata: %s\n", cfg.MetadataFile)
	fmt.Fprintf(c.App.ErrWriter, "Audio directory: %s\n", cfg.AudioDir)
	fmt.Fprintln(c.App.ErrWriter)

	report, err := pipeline.Run(ctx, table, cfg.AudioDir)
	if report != nil {
		report.Print(c.App.Writer)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func countCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := db.Collection().Count(c.Context)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	fmt.Fprintln(c.App.Writer, count)
	return nil
}

func similarCommand(c *cli.Context) error {
	limit := c.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	results, err := searcher.FindSimilar(c.Context, c.String("audio"), limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(c.App.Writer, "%d: %s %s [%0.4f]\n",
			i, hit.Record.ID, hit.Record.Metadata["diagnosis"], hit.Distance)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	collection := db.Collection()
	count, err := collection.Count(c.Context)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	last, err := db.Runs().LastRun(c.Context, collection.Name())
	if err != nil {
		return fmt.Errorf("failed to read last run: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Collection: %s\n", collection.Name())
	fmt.Fprintf(w, "Fields: %s\n", strings.Join(collection.Schema().Fields, ", "))
	fmt.Fprintf(w, "Records: %d\n", count)
	if last == nil {
		fmt.Fprintln(w, "Last run: none")
		return nil
	}
	fmt.Fprintf(w, "Last run: %s\n", last.RunID)
	fmt.Fprintf(w, "  finished %s (%s)\n",
		last.FinishedAt.Local().Format(time.RFC3339), last.FinishedAt.Sub(last.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  new entries %d, skipped %d, total %d\n", last.NewEntries, last.Skipped, last.TotalInStore)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
