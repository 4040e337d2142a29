package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/lifecycle"
	"github.com/eduardoboucas/jekyll-discuss/internal/platform"
	"github.com/eduardoboucas/jekyll-discuss/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

With --watch, review requests merged in local repositories (fs adapter) get
the same callback the hosting services trigger through their webhooks.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := loadPlatform(ctx)
		if err != nil {
			fatal("Failed to initialize discuss", err)
		}
		defer p.Close()

		opts := []server.Option{
			server.WithLogger(slog.Default()),
			server.WithGitHubWebhookSecret(p.Config.Gateway.GitHub.WebhookSecret),
			server.WithGitLabWebhookToken(p.Config.Gateway.GitLab.WebhookToken),
		}
		if p.Secrets != nil {
			opts = append(opts, server.WithEncrypter(p.Secrets))
		}

		addr := p.Config.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		if serveWatch {
			lifecycle.Go(ctx, p.WatchLocalReviews, lifecycle.WithErrorHandler(func(err error) {
				slog.Error("Local review watch stopped", "error", err)
			}))
		}

		srv := server.New(p.Service, opts...)
		if err := srv.Run(ctx, addr, p.Config.Server.ShutdownTimeout); err != nil {
			fatal("Server stopped", err)
		}

		// Notifications of the last requests may still be in flight.
		if !platform.WaitForTasks(p.Config.Server.ShutdownTimeout) {
			slog.Warn("Background tasks still running at shutdown", "timeout", p.Config.Server.ShutdownTimeout)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Run the merge callback for reviews merged in local repositories")
}
