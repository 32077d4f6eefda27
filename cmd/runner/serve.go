package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"discord-code-runner/internal/config"
	"discord-code-runner/internal/discord"
	"discord-code-runner/internal/orchestrator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the configured channels and answer commands",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadRuntime(configPath)
	if err != nil {
		logger.Fatal("load runtime", zap.Error(err))
	}
	if err := cfg.ValidateServe(); err != nil {
		logger.Fatal("invalid runtime", zap.Error(err))
	}
	allow, err := config.LoadAllowList(cfg.AllowListFile)
	if err != nil {
		logger.Fatal("load allowlist", zap.Error(err))
	}
	chat := discord.NewClient(cfg.APIBase, cfg.DiscordToken)
	chat.SetLogger(logger.Named("discord"))
	app, err := orchestrator.New(cfg, chat, allow, logger)
	if err != nil {
		logger.Fatal("create app", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info("runner started",
		zap.String("variant", cfg.Variant),
		zap.Strings("channels", cfg.Channels),
		zap.Duration("poll_interval", cfg.PollInterval))
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("runner exited")
	return nil
}
