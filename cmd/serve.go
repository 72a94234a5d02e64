package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sciworks/appreg/internal/log"
	"github.com/sciworks/appreg/internal/pubsub"
	"github.com/sciworks/appreg/internal/tracing"
	"github.com/sciworks/appreg/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the built registry over http",
	Long: `Serve builds the registry and serves the output directory over http.
With --watch the apps and categories documents are watched and the registry
is rebuilt whenever they change.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address")
	serveCmd.Flags().Bool("watch", false, "rebuild when the input documents change")
	serveCmd.Flags().Bool("no-build", false, "serve the existing output without building first")

	_ = viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("serve.watch", serveCmd.Flags().Lookup("watch"))
}

func runServe(cmd *cobra.Command, args []string) error {
	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if noBuild, _ := cmd.Flags().GetBool("no-build"); !noBuild {
		if err := buildRegistry(ctx, true); err != nil {
			return err
		}
	}

	broker := pubsub.NewBroker[string]()
	defer broker.Close()

	if cfg.Serve.Watch {
		if err := watchSources(ctx, broker); err != nil {
			return err
		}
		go rebuildLoop(ctx, broker)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Static("/", cfg.Out)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	log.Info(log.CatServe, "serving registry", "addr", cfg.Serve.Addr, "dir", cfg.Out, "watch", cfg.Serve.Watch)
	if err := e.Start(cfg.Serve.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// watchSources starts a file watcher on the input documents and republishes
// changes on the broker.
func watchSources(ctx context.Context, broker *pubsub.Broker[string]) error {
	w, err := watcher.New(watcher.DefaultConfig(cfg.Apps, cfg.Categories))
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	onChange, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return fmt.Errorf("starting watcher: %w", err)
	}

	go func() {
		defer func() { _ = w.Stop() }()
		for {
			select {
			case changed, ok := <-onChange:
				if !ok {
					return
				}
				log.Info(log.CatServe, "source changed", "path", changed)
				broker.Publish(pubsub.SourceChangedEvent, changed)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// rebuildLoop rebuilds the registry on every source change event. Build
// progress is published back on the broker so other subscribers (and tests)
// can observe it.
func rebuildLoop(ctx context.Context, broker *pubsub.Broker[string]) {
	events := broker.Subscribe(ctx)
	for event := range events {
		if event.Type != pubsub.SourceChangedEvent {
			continue
		}

		broker.Publish(pubsub.BuildStartedEvent, event.Payload)
		if err := buildRegistry(ctx, true); err != nil {
			log.ErrorErr(log.CatServe, "rebuild failed", err)
			broker.Publish(pubsub.BuildFailedEvent, err.Error())
			continue
		}
		broker.Publish(pubsub.BuildFinishedEvent, cfg.Out)
		log.Info(log.CatServe, "registry rebuilt", "trigger", event.Payload)
	}
}
