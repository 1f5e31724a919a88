package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/sourcebot/internal/app"
	"github.com/ent0n29/sourcebot/internal/config"
	"github.com/ent0n29/sourcebot/internal/logging"
	"github.com/ent0n29/sourcebot/internal/protocol"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "sourcebot",
	Short: "Conversational B2B sourcing requirements assistant",
	Long: `sourcebot collects a buyer's sourcing requirements through a guided chat.

Run without arguments to start the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP and WebSocket server",
	RunE:  runServe,
}

var checkReplyCmd = &cobra.Command{
	Use:   "check-reply [file]",
	Short: "Validate a model reply envelope against the response schema",
	Long: `Reads an envelope such as {"response": {...}} from the file, or stdin when
no file or "-" is given, and reports the decoded turn. Exits non-zero when the
reply would be rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheckReply,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, checkReplyCmd, probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	built, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warn("cleanup failed", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: built.API.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr), zap.String("model_provider", built.Provider))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			_ = httpServer.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func runCheckReply(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	turn, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		return fmt.Errorf("reply rejected: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "valid %s reply (stage: %s)\n", turn.Type, protocol.StageOf(turn))
	if turn.HasPills() {
		fmt.Fprintf(out, "pills: %v\n", turn.Pills)
	}
	if turn.Card != nil {
		fmt.Fprintf(out, "summary: %d bullet(s), %d attachment(s)\n", len(turn.Card.Summary), len(turn.Card.Attachments))
	}
	return nil
}
