package cmd

import (
	"context"
	"fmt"
	"os"

	"tunevault/config"
	"tunevault/db"
	"tunevault/model"
	"tunevault/repository"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and administer the media cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Bulk-delete every cache record",
	Long: `Bulk-delete every cache record.

Backing artifact files are NOT deleted. Any reference that survives
elsewhere (Redis hot layer, running processes) becomes a stale pointer;
the fetch pipeline recovers by re-verifying files and re-downloading.
Run this only at controlled points, never against a live serve process
mid-session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, cleanup, err := openRepository()
		if err != nil {
			return err
		}
		defer cleanup()

		n, err := repo.DeleteAll(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d cache records. Artifact files were left on disk.\n", n)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count cache records and check artifact liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, cleanup, err := openRepository()
		if err != nil {
			return err
		}
		defer cleanup()

		records, err := repo.All(context.Background())
		if err != nil {
			return err
		}

		stale := 0
		for _, record := range records {
			if _, err := os.Stat(record.LocalPath); err != nil {
				stale++
				fmt.Printf("stale: %s/%s -> %s\n", record.AssetID, record.Variant, record.LocalPath)
			}
		}
		fmt.Printf("%d cache records, %d stale pointers.\n", len(records), stale)
		return nil
	},
}

func openRepository() (repository.CacheRecordRepository, func(), error) {
	cfg := config.Load()
	if err := db.Connect(cfg); err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(&model.CacheRecord{}); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repository.NewMySQLCacheRecordRepository(db.DB), func() { db.Close() }, nil
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
