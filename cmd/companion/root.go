package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vladimiradmaev/diabetes-companion/internal/apiclient"
	"github.com/vladimiradmaev/diabetes-companion/internal/boundary"
	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
	"github.com/vladimiradmaev/diabetes-companion/internal/logger"
	"github.com/vladimiradmaev/diabetes-companion/internal/store"
	"github.com/vladimiradmaev/diabetes-companion/internal/store/persist"
)

// app carries the per-invocation settings shared by all subcommands.
type app struct {
	v   *viper.Viper
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("COMPANION")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "companion",
		Short:         "companion tracks glucose, meals and AI assistance from your terminal",
		Long:          "companion is the local client of the diabetes companion: readings, meals and favorites live on this device, AI chat goes through the companion API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if a.v.GetBool("verbose") {
				level = slog.LevelDebug
			}
			a.log = logger.New(cmd.ErrOrStderr(), logger.Config{Level: level, Format: "text"})
		},
	}

	flags := root.PersistentFlags()
	flags.String("db", "", "Path to the local SQLite state (default ~/.diabetes-companion/state.db)")
	flags.String("api-url", "http://localhost:8080", "Companion API base URL")
	flags.String("token", "", "Access token for the companion API")
	flags.String("redis-addr", "", "Keep state in Redis at this address instead of SQLite")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database number")
	flags.Bool("verbose", false, "Log debug output to stderr")
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		a.glucoseCmd(),
		a.mealCmd(),
		a.favoriteCmd(),
		a.statsCmd(),
		a.contextCmd(),
		a.memoryCmd(),
		a.profileCmd(),
		a.entitlementCmd(),
		a.askCmd(),
		a.logoutCmd(),
	)
	return root
}

func (a *app) dbPath() (string, error) {
	if p := a.v.GetString("db"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".diabetes-companion", "state.db"), nil
}

type closableRepository interface {
	persist.Repository
	Close() error
}

// openRepository picks Redis when an address is configured, SQLite otherwise.
func (a *app) openRepository(ctx context.Context) (closableRepository, error) {
	if addr := a.v.GetString("redis-addr"); addr != "" {
		client, err := persist.NewRedisClient(ctx, addr, a.v.GetString("redis-password"), a.v.GetInt("redis-db"))
		if err != nil {
			return nil, err
		}
		return persist.NewRedis(client, persist.DefaultNamespace), nil
	}

	path, err := a.dbPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return persist.OpenSQLite(ctx, path, persist.DefaultNamespace)
}

// withStore hydrates the store, runs fn inside the error boundary and waits
// for the resulting saves before closing storage.
func (a *app) withStore(cmd *cobra.Command, fn func(st *store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	st := store.New(repo, a.log)
	st.Hydrate(ctx)
	defer st.Flush()

	b := boundary.New(cmd.ErrOrStderr(), func() domain.Lang { return st.Settings().Language }, a.log)
	b.Run(func() error { return fn(st) })
	return b.LastError()
}

func (a *app) client() *apiclient.Client {
	return apiclient.New(a.v.GetString("api-url"), a.v.GetString("token"), 60*time.Second)
}
