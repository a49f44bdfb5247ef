package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/platewise/platewise/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show result cache statistics",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the result cache database",
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheCmd.PersistentFlags().String("cache-path", "platewise-cache.db", "result cache database path")
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("cache-path")

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Printf("No cache at %s\n", path)
		return nil
	}
	if err != nil {
		return err
	}

	store, err := cache.OpenSQLite(path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	count, err := store.Count(context.Background())
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	fmt.Printf("Path:    %s\n", path)
	fmt.Printf("Size:    %s\n", humanize.Bytes(uint64(info.Size())))
	fmt.Printf("Entries: %d\n", count)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("cache-path")

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No cache at %s\n", path)
			return nil
		}
		return fmt.Errorf("failed to remove cache: %w", err)
	}
	// SQLite sidecar files from WAL mode
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")

	fmt.Printf("Removed %s\n", path)
	return nil
}
