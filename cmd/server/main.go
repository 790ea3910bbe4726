package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"association-party/internal/config"
	"association-party/internal/db"
	"association-party/internal/game"
	"association-party/internal/hub"
	"association-party/internal/server"
	"association-party/internal/store/memory"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	envFiles    []string
	port        int
	databaseURL string
	driver      string
	autoMigrate bool
	maxPlayers  int
}

func main() {
	cobra.CheckErr(newCmd(&options{}).Execute())
}

func newCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "association-party",
		Short:         "Host rooms of the association party game over HTTP and websockets.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment; earlier files win")
	fs.IntVarP(&opts.port, "port", "p", 8080, "port to listen on (env: PORT)")
	fs.StringVar(&opts.databaseURL, "database-url", "", "database DSN; empty keeps state in memory (env: DATABASE_URL)")
	fs.StringVar(&opts.driver, "database-driver", "postgres", "postgres or mysql (env: DATABASE_DRIVER)")
	fs.BoolVar(&opts.autoMigrate, "auto-migrate", false, "run schema auto-migration at startup (env: AUTO_MIGRATE)")
	fs.IntVar(&opts.maxPlayers, "max-players", 50, "players allowed per room (env: MAX_PLAYERS)")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// loadConfig reads the dotenv file and the environment, then applies any
// flags given explicitly on the command line.
func loadConfig(fs *pflag.FlagSet, opts *options) (config.Config, error) {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		log.Printf("failed to load env files: %v", err)
	}
	cfg, err := config.Parse()
	if err != nil {
		return cfg, err
	}
	if fs.Changed("port") {
		cfg.Port = opts.port
	}
	if fs.Changed("database-url") {
		cfg.DatabaseURL = opts.databaseURL
	}
	if fs.Changed("database-driver") {
		cfg.DatabaseDriver = opts.driver
	}
	if fs.Changed("auto-migrate") {
		cfg.AutoMigrate = opts.autoMigrate
	}
	if fs.Changed("max-players") {
		cfg.MaxPlayers = opts.maxPlayers
	}
	return cfg, cfg.Validate()
}

func openStore(cfg config.Config) (game.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL not set; keeping rooms in memory")
		return memory.New(game.NewRand()), nil
	}
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(conn); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		log.Printf("database auto-migration complete")
	}
	return db.NewStore(conn, game.NewRand()), nil
}

func run(ctx context.Context, cfg config.Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	engine := game.NewEngine(store, game.WithMaxPlayers(cfg.MaxPlayers))
	registry := hub.New()
	srv := server.New(engine, registry, cfg)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("association-party listening on %s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down")
		// Hijacked websocket connections are not tracked by Shutdown.
		registry.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}
