package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Ingest    IngestConfig    `yaml:"ingest"`
	State     StateConfig     `yaml:"state"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Engine    EngineConfig    `yaml:"engine"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Redis     RedisConfig     `yaml:"redis"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// IngestConfig points at the decoder feed. Subscriptions are raw payloads sent
// after every (re)connect; feeds that push everything unsolicited need none.
type IngestConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	Subscriptions  []string      `yaml:"subscriptions"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// AnalyzerConfig identifies the pool-custodied reference asset used to price
// swaps and carries the externally supplied reference-to-USD rate.
type AnalyzerConfig struct {
	ReferenceMint string  `yaml:"reference_mint"`
	PoolAuthority string  `yaml:"pool_authority"`
	USDRate       float64 `yaml:"usd_rate"`
}

// EngineConfig overrides the trailing-range band geometry. Zero values fall
// back to the built-in defaults.
type EngineConfig struct {
	UpperTopPct      float64       `yaml:"upper_top_pct"`
	UpperBottomPct   float64       `yaml:"upper_bottom_pct"`
	UpperTTL         time.Duration `yaml:"upper_ttl"`
	NeutralTopPct    float64       `yaml:"neutral_top_pct"`
	NeutralBottomPct float64       `yaml:"neutral_bottom_pct"`
	NeutralTTL       time.Duration `yaml:"neutral_ttl"`
	LowerTopPct      float64       `yaml:"lower_top_pct"`
	LowerBottomPct   float64       `yaml:"lower_bottom_pct"`
	LowerTTL         time.Duration `yaml:"lower_ttl"`
	TTLDecay         float64       `yaml:"ttl_decay"`
}

// TrackerConfig gates which traders are tracked. An empty wallet list tracks
// everyone; MaxOpenPositions caps concurrent open positions across the book
// (zero means unlimited).
type TrackerConfig struct {
	Wallets          []string `yaml:"wallets"`
	MaxOpenPositions int      `yaml:"max_open_positions"`
}

type RedisConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	SwapStream      string `yaml:"swap_stream"`
	DecisionChannel string `yaml:"decision_channel"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

const (
	// Wrapped SOL mint and the Raydium AMM authority, the default reference
	// pair for pricing swaps out of balance deltas.
	DefaultReferenceMint = "So11111111111111111111111111111111111111112"
	DefaultPoolAuthority = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
)

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Ingest.ReconnectDelay == 0 {
		cfg.Ingest.ReconnectDelay = 3 * time.Second
	}
	if cfg.Ingest.PingInterval == 0 {
		cfg.Ingest.PingInterval = 30 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/sol-signal-bot.db"
	}
	if cfg.Analyzer.ReferenceMint == "" {
		cfg.Analyzer.ReferenceMint = DefaultReferenceMint
	}
	if cfg.Analyzer.PoolAuthority == "" {
		cfg.Analyzer.PoolAuthority = DefaultPoolAuthority
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.SwapStream == "" {
		cfg.Redis.SwapStream = "swap_events"
	}
	if cfg.Redis.DecisionChannel == "" {
		cfg.Redis.DecisionChannel = "position_decisions"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	if cfg.Ingest.URL == "" {
		return errors.New("ingest.url is required")
	}
	if cfg.Analyzer.USDRate <= 0 {
		return errors.New("analyzer.usd_rate must be > 0")
	}
	if cfg.Tracker.MaxOpenPositions < 0 {
		return errors.New("tracker.max_open_positions must be >= 0")
	}
	if cfg.Engine.TTLDecay != 0 && (cfg.Engine.TTLDecay <= 0 || cfg.Engine.TTLDecay >= 1) {
		return errors.New("engine.ttl_decay must be in (0, 1)")
	}
	if cfg.Timescale.Enabled && cfg.Timescale.DSN == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
