package config

import "time"

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Mesh           MeshConfig           `mapstructure:"mesh"`
	Remote         RemoteConfig         `mapstructure:"remote"`
	Terminal       TerminalConfig       `mapstructure:"terminal"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Region         RegionConfig         `mapstructure:"region"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	LocationID  string `mapstructure:"location_id"`
	DeviceID    string `mapstructure:"device_id"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	StatsTTL     time.Duration `mapstructure:"stats_ttl"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MeshConfig covers both roles: the hub listens on the shared HTTP port,
// clients dial HubURL.
type MeshConfig struct {
	Role             string        `mapstructure:"role"`
	HubURL           string        `mapstructure:"hub_url"`
	RegisterTimeout  time.Duration `mapstructure:"register_timeout"`
	ReconnectInitial time.Duration `mapstructure:"reconnect_initial"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
}

type RemoteConfig struct {
	Domain         string        `mapstructure:"domain"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
}

type TerminalConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	TerminalID     string        `mapstructure:"terminal_id"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	SurchargeBasisPoints int64 `mapstructure:"surcharge_basis_points"`
	SurchargeFlatCents   int64 `mapstructure:"surcharge_flat_cents"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

type RegionConfig struct {
	Timezone string `mapstructure:"timezone"`
	Currency string `mapstructure:"currency"`

	// DayRolloverHour is the local hour at which a new business date
	// starts. A 2 AM close keeps the whole shift on one date.
	DayRolloverHour int `mapstructure:"day_rollover_hour"`
}
