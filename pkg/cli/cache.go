package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/stockyard/pkg/gateway"
	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the response cache",
		Long: `Inspect the response cache. The memory backend lives only as long as one
command, so these are mostly useful with --cache redis.`,
	}
	cmd.AddCommand(newCacheStatsCmd(a), newCacheClearCmd(a))
	return cmd
}

func newCacheStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the cache backend and cached keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *gateway.Client) error {
				stats, err := c.CacheStats(ctx)
				if err != nil {
					return err
				}
				raw, err := json.Marshal(stats)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), raw)
			})
		},
	}
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [pattern]",
		Short: "Remove cached responses whose key contains pattern, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pattern string
			if len(args) == 1 {
				pattern = args[0]
			}
			return a.withClient(cmd, func(ctx context.Context, c *gateway.Client) error {
				n, err := c.ClearCache(ctx, pattern)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached responses\n", n)
				return nil
			})
		},
	}
}
