package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"evopanel/internal/config"
	"evopanel/internal/gateway"
)

func instanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Manage gateway instances",
		Long:  "Create, connect, list and remove WhatsApp instances on the gateway.",
	}
	cmd.AddCommand(instanceListCmd())
	cmd.AddCommand(instanceCreateCmd())
	cmd.AddCommand(instanceConnectCmd())
	cmd.AddCommand(instanceLogoutCmd())
	cmd.AddCommand(instanceDeleteCmd())
	return cmd
}

func newGatewayClient() (*gateway.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	gw := gateway.NewClient(gateway.ClientConfig{
		BaseURL: cfg.Gateway.URL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})
	return gw, cfg, nil
}

func instanceName(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Gateway.DefaultInstance
}

func instanceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List instances on the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, _, err := newGatewayClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			instances, err := gw.FetchInstances(ctx)
			if err != nil {
				return err
			}
			if len(instances) == 0 {
				fmt.Println("no instances")
				return nil
			}
			for _, inst := range instances {
				fmt.Printf("%-24s %-12s %s\n", inst.Name, inst.Status, inst.Owner)
			}
			return nil
		},
	}
}

func instanceCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create an instance on the gateway",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, cfg, err := newGatewayClient()
			if err != nil {
				return err
			}
			name := instanceName(cfg, args)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := gw.CreateInstance(ctx, name); err != nil {
				return err
			}
			logger.Info("instance created", "name", name)
			return nil
		},
	}
}

func instanceConnectCmd() *cobra.Command {
	var qrPath string
	cmd := &cobra.Command{
		Use:   "connect [name]",
		Short: "Fetch the pairing QR code and wait for the instance to connect",
		Long:  "Writes the pairing QR code as a PNG, then polls the connection state until the instance reports open or the attempt budget runs out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, cfg, err := newGatewayClient()
			if err != nil {
				return err
			}
			name := instanceName(cfg, args)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			qr, err := gw.Connect(ctx, name)
			if err != nil {
				return fmt.Errorf("fetch QR: %w", err)
			}
			if qr.Code == "" {
				logger.Info("no QR returned, instance may already be paired", "name", name)
			} else {
				if qrPath == "" {
					qrPath = filepath.Join(config.DefaultConfigDir(), name+"-qr.png")
				}
				if err := qrcode.WriteFile(qr.Code, qrcode.Medium, 512, qrPath); err != nil {
					return fmt.Errorf("write QR image: %w", err)
				}
				fmt.Printf("QR code written to %s — scan it with WhatsApp.\n", qrPath)
			}

			watcher := gateway.NewWatcher(gateway.WatcherConfig{
				State:       gw.ConnectionState,
				Interval:    time.Duration(cfg.Watcher.IntervalMs) * time.Millisecond,
				MaxAttempts: cfg.Watcher.MaxAttempts,
				Logger:      logger,
			})
			switch watcher.Watch(ctx, name) {
			case gateway.OutcomeConnected:
				fmt.Println("connected")
				return nil
			case gateway.OutcomeExhausted:
				return fmt.Errorf("instance %s did not connect in time", name)
			default:
				return ctx.Err()
			}
		},
	}
	cmd.Flags().StringVar(&qrPath, "qr-out", "", "path for the QR PNG (default: config dir)")
	return cmd
}

func instanceLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout [name]",
		Short: "Log an instance out of WhatsApp",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, cfg, err := newGatewayClient()
			if err != nil {
				return err
			}
			name := instanceName(cfg, args)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := gw.Logout(ctx, name); err != nil {
				return err
			}
			logger.Info("instance logged out", "name", name)
			return nil
		},
	}
}

func instanceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete an instance from the gateway",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, cfg, err := newGatewayClient()
			if err != nil {
				return err
			}
			name := instanceName(cfg, args)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := gw.DeleteInstance(ctx, name); err != nil {
				return err
			}
			logger.Info("instance deleted", "name", name)
			return nil
		},
	}
}
