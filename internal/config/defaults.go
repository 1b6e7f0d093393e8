package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Gateway: GatewayConfig{
			TimeoutSeconds:  30,
			DefaultInstance: "default",
		},
		Webhook: WebhookConfig{
			Path: "/webhook",
		},
		Relay: RelayConfig{
			Path: "/ws",
		},
		Database: DatabaseConfig{
			Path: "~/.evopanel/panel.db",
		},
		AutoReply: AutoReplyConfig{
			Enabled:  false,
			Template: "default",
		},
		Watcher: WatcherConfig{
			IntervalMs:  5000,
			MaxAttempts: 60,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
