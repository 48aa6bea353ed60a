// Command insightctl is the operator CLI: schema migrations and auth-token administration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"call-insights/internal/audit"
	"call-insights/internal/authtoken"
	"call-insights/internal/config"
	"call-insights/migrations"
	"call-insights/pkg/logger"
	"call-insights/pkg/utils"

	"github.com/spf13/cobra"
)

const tokenCachePrefix = "call-insights:auth-token:"

// runtime holds the dependencies a command needs. close releases them.
type runtime struct {
	tokens *authtoken.Service
	db     migrations.DB
	close  func()
}

type opener func(ctx context.Context) (*runtime, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openRuntime).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "insightctl",
		Short:         "Operate the call-insights service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(open), newTokenCmd(open))
	return root
}

// openRuntime connects to Postgres and Redis using the same configuration as the API.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.App.Env)

	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxConns: 2})
	if err != nil {
		return nil, err
	}
	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		db.Close()
		return nil, err
	}

	tokens := authtoken.NewService(
		authtoken.NewPostgresStore(db),
		utils.NewRedisCache(rdb, tokenCachePrefix),
		cfg.Redis.TokenCacheTTL,
		audit.NewService(audit.NewPostgresRepo(db)),
	)
	return &runtime{
		tokens: tokens,
		db:     db,
		close: func() {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", "err", err)
			}
			db.Close()
		},
	}, nil
}

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			applied, err := migrations.Apply(cmd.Context(), rt.db)
			for _, v := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	}
}
