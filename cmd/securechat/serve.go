package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/securechat/securechat/internal/crypto"
	"github.com/securechat/securechat/internal/server"
	"github.com/securechat/securechat/internal/services/accounts"
	"github.com/securechat/securechat/internal/services/messages"
	"github.com/securechat/securechat/internal/services/verify"
	"github.com/securechat/securechat/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SecureChat server",
	Long: `Serve starts the HTTP API, the WebSocket notification endpoint
and the Prometheus metrics handler, and runs until interrupted.`,
	Example: `  securechat serve
  securechat serve --config /etc/securechat.yaml`,
	RunE: runServe,
}

const codeCleanupInterval = 10 * time.Minute

func init() {
	rootCmd.AddCommand(serveCmd)
}

func openStore() (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		printWarning("Using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.Path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	provider := crypto.NewProviderWithParams(cfg.Crypto.KeyBits, cfg.Crypto.KDFIterations)

	acc := accounts.NewService(st, provider, logger)
	msg := messages.NewService(st, st, provider, logger)
	ver := verify.NewService(st, st, &verify.LogSender{Logger: logger}, cfg.Verify.CodeLength, cfg.Verify.TTL, logger)

	// Periodic sweep of expired verification codes.
	go func() {
		ticker := time.NewTicker(codeCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := ver.CleanupExpired(ctx); err != nil {
					logger.WithError(err).Warn("Verification code cleanup failed")
				}
			}
		}
	}()

	srv := server.New(cfg, logger, acc, msg, ver)

	printInfo("SecureChat listening on %s", cfg.Server.Addr)
	if err := srv.Start(ctx); err != nil {
		printError("Server error: %v", err)
		return err
	}

	printSuccess("Server stopped")
	return nil
}
