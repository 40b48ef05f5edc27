package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app/configs")

	viper.SetEnvPrefix("PDV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Allow common env vars without PDV_ prefix for Docker deploys
	viper.BindEnv("http.port", "HTTP_PORT", "PDV_HTTP_PORT")
	viper.BindEnv("database.url", "DATABASE_URL", "PDV_DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL", "PDV_REDIS_URL")
	viper.BindEnv("remote.domain", "REMOTE_DOMAIN", "PDV_REMOTE_DOMAIN")
	viper.BindEnv("remote.token", "REMOTE_TOKEN", "PDV_REMOTE_TOKEN")
	viper.BindEnv("mesh.role", "MESH_ROLE", "PDV_MESH_ROLE")
	viper.BindEnv("mesh.hub_url", "MESH_HUB_URL", "PDV_MESH_HUB_URL")
	viper.BindEnv("terminal.api_key", "TERMINAL_API_KEY")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("app.location_id", "LOCATION_ID")
	viper.BindEnv("app.device_id", "DEVICE_ID")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file is fine, env vars carry the rest
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "pdv-core")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.read_timeout", "10s")
	viper.SetDefault("http.write_timeout", "10s")
	viper.SetDefault("http.idle_timeout", "60s")
	viper.SetDefault("database.max_open_conns", 20)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.auto_migrate", true)
	viper.SetDefault("redis.stats_ttl", "10s")
	viper.SetDefault("mesh.role", "hub")
	viper.SetDefault("mesh.register_timeout", "5s")
	viper.SetDefault("mesh.reconnect_initial", "1s")
	viper.SetDefault("mesh.reconnect_max", "30s")
	viper.SetDefault("mesh.send_buffer", 64)
	viper.SetDefault("mesh.write_timeout", "5s")
	viper.SetDefault("mesh.ping_interval", "30s")
	viper.SetDefault("remote.request_timeout", "15s")
	viper.SetDefault("remote.sync_interval", "30s")
	viper.SetDefault("terminal.poll_interval", "2s")
	viper.SetDefault("terminal.poll_timeout", "90s")
	viper.SetDefault("terminal.request_timeout", "10s")
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_threshold", 5)
	viper.SetDefault("region.timezone", "America/Sao_Paulo")
	viper.SetDefault("region.currency", "BRL")
	viper.SetDefault("region.day_rollover_hour", 4)
}
