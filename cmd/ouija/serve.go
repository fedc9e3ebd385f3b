package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisrobison/ouija/internal/agent"
	"github.com/chrisrobison/ouija/internal/channel"
	"github.com/chrisrobison/ouija/internal/channel/discord"
	"github.com/chrisrobison/ouija/internal/channel/telegram"
	"github.com/chrisrobison/ouija/internal/channel/webchat"
	"github.com/chrisrobison/ouija/internal/config"
	"github.com/chrisrobison/ouija/internal/inference"
	"github.com/chrisrobison/ouija/internal/logging"
	"github.com/chrisrobison/ouija/internal/scheduler"
	"github.com/chrisrobison/ouija/internal/server"
	"github.com/chrisrobison/ouija/internal/spirit"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP action endpoint and any enabled chat channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	logger := logging.WithComponent("main")
	logger.Info("Starting ouija", "version", version, "store", cfg.Store.Backend, "provider", cfg.Inference.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := inference.New(ctx, cfg.Inference)
	if err != nil {
		return err
	}
	if err := client.Health(); err != nil {
		logger.Warn("Inference provider not ready", "provider", cfg.Inference.Provider, "error", err)
	}

	svc := spirit.NewService(st, client, spirit.OptionsFromConfig(cfg))

	purged, err := svc.Sweep(ctx)
	if err != nil {
		return err
	}
	logger.Info("Startup sweep finished", "purged", purged)

	sched, err := scheduler.NewScheduler(svc, cfg.Store.SweepSchedule)
	if err != nil {
		return err
	}
	sched.Start()
	logger.Info("Scheduler started", "schedule", cfg.Store.SweepSchedule)

	dispatcher := server.NewDispatcher(svc, logging.WithComponent("dispatcher"))

	// Initialize channels
	adapters := []channel.ChannelAdapter{}
	if cfg.Channels.Telegram.Enabled {
		adapters = append(adapters, telegram.NewTelegramAdapter(cfg.Channels.Telegram.Token))
	}
	if cfg.Channels.Discord.Enabled {
		adapters = append(adapters, discord.NewDiscordAdapter(cfg.Channels.Discord.Token))
	}
	if cfg.Channels.WebChat.Enabled {
		adapters = append(adapters, webchat.NewWebChatAdapter(cfg.Channels.WebChat.Port))
	}

	started := []channel.ChannelAdapter{}
	for _, adapter := range adapters {
		if !adapter.IsEnabled() {
			logger.Warn("Adapter enabled without credentials, skipping", "adapter", adapter.Name())
			continue
		}
		if err := adapter.Start(ctx); err != nil {
			logger.Error("Failed to start adapter", "adapter", adapter.Name(), "error", err)
			continue
		}
		logger.Info("Adapter started", "adapter", adapter.Name())
		started = append(started, adapter)
	}

	loop := agent.NewAgentLoop(dispatcher, logging.WithComponent("agent"))
	loop.Run(ctx, started...)

	srv := server.New(cfg, dispatcher, client, logging.WithComponent("http"))
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-serverErr:
		logger.Error("Server error", "error", err)
		stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Stopping HTTP server")
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("Server shutdown error", "error", serr)
	}

	logger.Info("Stopping adapters")
	for _, adapter := range started {
		if aerr := adapter.Stop(); aerr != nil {
			logger.Error("Failed to stop adapter", "adapter", adapter.Name(), "error", aerr)
		}
	}
	loop.Wait()

	logger.Info("Stopping scheduler")
	sched.Stop()

	logger.Info("Shutdown complete")
	return err
}
