package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"evopanel/internal/bus"
	"evopanel/internal/chat"
	"evopanel/internal/config"
	"evopanel/internal/gateway"
	"evopanel/internal/relay"
	"evopanel/internal/server"
	"evopanel/internal/store"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	_ = godotenv.Load()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "evopanel",
		Short: "Evopanel: WhatsApp store admin panel backend",
		Long:  "Evopanel bridges an Evolution-style WhatsApp gateway with an admin panel: webhook ingress, realtime relay, auto-reply and CRM storage.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.evopanel/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(instanceCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the panel server (webhook + relay + API)",
		Long:  "Starts the HTTP server with webhook ingress, the WebSocket relay and the admin API. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		logger.Warn("config not found, using defaults", "err", err)
		cfg = config.Defaults()
		if err := config.ApplyEnv(cfg); err != nil {
			return err
		}
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel(cfg)}))
	for _, warn := range config.Warnings(cfg) {
		logger.Warn(warn)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := bus.New(100, logger)

	panelStore, err := store.NewSQLiteStore(config.ExpandPath(cfg.Database.Path), logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer panelStore.Close()

	gw := gateway.NewClient(gateway.ClientConfig{
		BaseURL: cfg.Gateway.URL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	chatLog := chat.NewLog()
	hub := relay.NewHub(logger)

	templates, err := chat.LoadTemplates(config.ExpandPath(cfg.AutoReply.TemplatesPath), logger)
	if err != nil {
		return fmt.Errorf("reply templates: %w", err)
	}
	responder := chat.NewResponder(chat.ResponderConfig{
		Log:       chatLog,
		Sender:    gw,
		Templates: templates,
		Instance:  cfg.Gateway.DefaultInstance,
		Template:  cfg.AutoReply.Template,
		Active:    cfg.AutoReply.Enabled,
		Logger:    logger,
	})

	eventBus.Subscribe("relay", hub.HandleEvent)
	eventBus.Subscribe("responder", responder.HandleEvent)

	webhook := relay.NewWebhook(relay.WebhookConfig{
		Bus:    eventBus,
		Secret: cfg.Webhook.Secret,
		Logger: logger,
	})

	srv := server.New(server.Deps{
		Config:    cfg,
		Store:     panelStore,
		Gateway:   gw,
		Webhook:   webhook,
		Hub:       hub,
		ChatLog:   chatLog,
		Responder: responder,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("panel started", "version", version, "addr", srv.Addr(), "webhook", cfg.Webhook.Path, "relay", cfg.Relay.Path)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
		return err
	}
	eventBus.Close()
	logger.Info("shutdown complete")
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			gw := gateway.NewClient(gateway.ClientConfig{
				BaseURL: cfg.Gateway.URL,
				APIKey:  cfg.Gateway.APIKey,
				Timeout: time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
				Logger:  logger,
			})
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			state, err := gw.ConnectionState(ctx, cfg.Gateway.DefaultInstance)
			if err != nil {
				logger.Info("gateway", "url", cfg.Gateway.URL, "reachable", false, "err", err)
				return nil
			}
			logger.Info("gateway", "url", cfg.Gateway.URL, "instance", cfg.Gateway.DefaultInstance, "state", state)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. gateway.url)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. autoReply.enabled true)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
