package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/offtrack/offtrack/internal/config"
	"github.com/offtrack/offtrack/internal/dataset"
	"github.com/offtrack/offtrack/internal/store"
)

var (
	seedCSVPath string
	seedFromS3  bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import the track catalog from a CSV dataset",
	Long: "Replace the track catalog with the contents of a CSV dataset. " +
		"With --from-s3 the configured dataset object is downloaded first. " +
		"Reseeding clears stored feedback along with the tracks it references.",
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedCSVPath, "csv", "",
		"CSV path (overrides dataset.csv_path from config)")
	seedCmd.Flags().BoolVar(&seedFromS3, "from-s3", false,
		"Download the dataset from configured S3 storage before importing")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	csvPath := seedCSVPath
	if csvPath == "" {
		csvPath = cfg.Dataset.CSVPath
	}

	if seedFromS3 {
		fetcher, err := dataset.NewFetcher(cfg.Dataset)
		if err != nil {
			return err
		}
		tmp, err := downloadDataset(ctx, fetcher)
		if err != nil {
			return err
		}
		defer os.RemoveAll(filepath.Dir(tmp))
		csvPath = tmp
	}

	tracks, err := dataset.LoadCSV(csvPath)
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ReplaceTracks(ctx, tracks); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}

	slog.Info("catalog seeded",
		"tracks", len(tracks),
		"source", csvPath,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d tracks into %s\n", len(tracks), cfg.Database.Path)
	return nil
}

func downloadDataset(ctx context.Context, fetcher dataset.Fetcher) (string, error) {
	dir, err := os.MkdirTemp("", "offtrack-dataset-*")
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, "data.csv")
	if err := fetcher.Fetch(ctx, dest); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("fetch dataset: %w", err)
	}
	return dest, nil
}
