package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-omnisfera"
)

func BuildRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "omnisfera-auth",
		Short:        "Omnisfera session and permission service",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (YAML)")

	cmd.AddCommand(
		buildServeCmd(&configFile),
		buildMigrateCmd(&configFile),
		buildSeedCmd(&configFile),
		buildHashPasswordCmd(),
	)

	return cmd
}

// loadOptions reads and normalizes the configuration for a command.
func loadOptions(configFile string, logger auth.Logger) (*auth.Options, error) {
	opts, err := auth.LoadOptions(configFile)
	if err != nil {
		return nil, err
	}
	if err := opts.Normalize(logger); err != nil {
		return nil, err
	}
	return opts, nil
}

func openDB(opts *auth.Options) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, opts.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// openRedis returns nil when no address is configured.
func openRedis(ctx context.Context, opts *auth.Options) (redis.UniversalClient, error) {
	if opts.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{opts.RedisAddr},
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := BuildRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
