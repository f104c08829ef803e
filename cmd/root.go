/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/seckatie/sitesd/internal/client"
	"github.com/seckatie/sitesd/internal/core"
	"github.com/seckatie/sitesd/internal/core/api"
	"github.com/seckatie/sitesd/internal/core/db"
	"github.com/seckatie/sitesd/internal/core/web"
	"github.com/seckatie/sitesd/internal/logging"
	"github.com/seckatie/sitesd/internal/metrics"
	"github.com/seckatie/sitesd/internal/query"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitesd",
	Short: "Serve the sites API and its admin page",
	Long: `sitesd keeps a list of monitored sites and a text snapshot of each one.

Running it without a subcommand starts the HTTP server: the JSON API under
/api/v1/sites/, the admin page under /sites and Prometheus metrics under
/metrics. Snapshots are refreshed in the background whenever a site is
created and whenever the admin page asks for it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfigFlag(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("db", "d", "sitesd.db", "SQLite database path or postgres:// DSN")
	rootCmd.PersistentFlags().String("config", "", "Optional YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	rootCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.Flags().String("host", "localhost", "Host to listen on")
	rootCmd.Flags().String("api-url", "", "Sites API the admin page talks to (default: this server)")
	rootCmd.Flags().String("api-token", "", "Bearer token sent to --api-url")
	rootCmd.Flags().Duration("cache-stale-time", query.DefaultConfig().StaleTime, "How long a fetched page of sites is served without refetching")
	rootCmd.Flags().Duration("update-interval", 0, "Minimum spacing between background update requests (0 = no limit)")

	// Refresh worker flags
	rootCmd.Flags().IntP("refresh-workers", "w", 1, "Number of content refresh workers to run")
	rootCmd.Flags().Duration("refresh-timeout", core.DefaultRefreshTimeout, "Per-site refresh timeout")
	rootCmd.Flags().Bool("render-js", false, "Render pages in headless Chrome before extracting text")
	rootCmd.Flags().String("chrome-path", "", "Path to Chrome/Chromium executable")
	rootCmd.Flags().Bool("headful", false, "Run Chrome with a visible window (not headless)")
}

func runServe(cmd *cobra.Command) error {
	log := initLogger(cmd)

	database, err := initDB(cmd, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}()

	flags := cmd.Flags()
	host, _ := flags.GetString("host")
	port, _ := flags.GetInt("port")
	apiURL, _ := flags.GetString("api-url")
	apiToken, _ := flags.GetString("api-token")
	staleTime, _ := flags.GetDuration("cache-stale-time")
	updateInterval, _ := flags.GetDuration("update-interval")
	numWorkers, _ := flags.GetInt("refresh-workers")
	refreshOpts, err := refreshOptions(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Background content refresh, fed by new sites and bulk update requests
	refresher := core.NewRefresher(database, refreshOpts, numWorkers*10, log)
	refresher.OnResult(func(_ db.Site, err error) {
		status := core.RefreshStatusOK
		if err != nil {
			status = core.RefreshStatusError
		}
		m.ContentRefreshes.WithLabelValues(status).Inc()
	})
	refresher.Start(ctx, numWorkers)
	defer refresher.Close()

	database.RegisterEventListener(db.OnSiteCreatedEvent, func(event db.Event) error {
		ev := event.(db.SiteCreatedEvent)
		log.Info("site created, queuing for refresh", "site", ev.Site.ID, "url", ev.Site.URL)
		refresher.Enqueue(ev.Site)
		return nil
	})

	// On startup, queue any sites whose content has gone stale
	go queueStale(ctx, refresher, log)

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if apiURL == "" {
		apiURL = selfURL(host, port)
	}
	var clientOpts []client.Option
	if apiToken != "" {
		clientOpts = append(clientOpts, client.WithToken(apiToken))
	}
	sitesAPI := client.New(apiURL, clientOpts...)

	cache := query.New[*client.SitesPage](query.Config{
		StaleTime: staleTime,
		Metrics:   m,
	})
	trigger := web.NewRefreshTrigger(sitesAPI, web.TriggerConfig{Interval: updateInterval}, log, m)
	trigger.Start(ctx)
	defer trigger.Close()

	ui, err := web.NewServer(sitesAPI, cache, trigger, log)
	if err != nil {
		return fmt.Errorf("failed to initialize web server: %w", err)
	}

	mux := http.NewServeMux()
	api.NewServer(database, refresher, log, m).RegisterRoutes(mux)
	ui.RegisterRoutes(mux)
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, log, apiURL)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, log *slog.Logger, apiURL string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "api", apiURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func queueStale(ctx context.Context, refresher *core.Refresher, log *slog.Logger) {
	select {
	case <-time.After(2 * time.Second): // give the server a moment to start
	case <-ctx.Done():
		return
	}
	n, err := refresher.EnqueueStale(ctx)
	if err != nil {
		log.Error("failed to list sites to refresh", "error", err)
		return
	}
	if n == 0 {
		log.Info("no existing sites need refreshing")
		return
	}
	log.Info("queued existing sites for refresh", "count", n)
}

// selfURL is the base URL of this process's own API. Wildcard listen
// addresses are reached through loopback.
func selfURL(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

func initLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(level),
		Format: logging.ParseFormat(format),
		Output: cmd.ErrOrStderr(),
	})
}

func initDB(cmd *cobra.Command, log *slog.Logger) (*db.DB, error) {
	dsn, err := cmd.Flags().GetString("db")
	if err != nil {
		return nil, fmt.Errorf("failed to read --db: %w", err)
	}
	database, err := db.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	database.SetLogger(log)

	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("database migrated successfully", "dialect", database.Dialect())
	return database, nil
}
