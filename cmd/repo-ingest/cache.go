package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/cache"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/config"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the page and embedding cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache entry counts and sizes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		defer c.Close()
		printCacheStats(cmd.OutOrStdout(), c)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached pages and embeddings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		c, err := openCache()
		if err != nil {
			return err
		}
		defer c.Close()
		return clearCache(cmd.OutOrStdout(), c, prefix)
	},
}

func init() {
	cacheClearCmd.Flags().String("prefix", "", "Only clear one kind of entry (page or embed)")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}

func openCache() (*cache.BadgerCache, error) {
	_ = config.LoadDotEnv()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return cache.NewBadgerCache(cache.BadgerOptions{Dir: utils.ExpandPath(cfg.Cache.Directory)})
}

func printCacheStats(out io.Writer, c *cache.BadgerCache) {
	stats := c.Stats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%-14s %v\n", k+":", stats[k])
	}
}

func clearCache(out io.Writer, c *cache.BadgerCache, prefix string) error {
	switch prefix {
	case "":
		n := c.Size()
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(out, "Removed %d entries\n", n)
	case cache.PrefixPage, cache.PrefixEmbed:
		before := c.Size()
		if err := c.ClearPrefix(prefix); err != nil {
			return fmt.Errorf("clear %s entries: %w", prefix, err)
		}
		fmt.Fprintf(out, "Removed %d %s entries\n", before-c.Size(), prefix)
	default:
		return fmt.Errorf("unknown cache prefix %q (use %s or %s)", prefix, cache.PrefixPage, cache.PrefixEmbed)
	}
	return nil
}
