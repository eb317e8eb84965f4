package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const ConfigPathEnv = "MARKET_CONFIG_PATH"

type MarketConfig struct {
	Env              string `yaml:"env" env:"MARKET_ENV" env-default:"local"`
	GRPCServer       `yaml:"grpc_server"`
	AdminHTTP        `yaml:"admin_http"`
	Store            `yaml:"store"`
	LogConfig        `yaml:"log_config"`
	KafkaService     `yaml:"kafka-service"`
	AnchorService    `yaml:"anchor-service"`
	SettlementConfig `yaml:"settlement"`
	RevocationConfig `yaml:"revocation"`
	DisputeConfig    `yaml:"dispute"`
	LeaseConfig      `yaml:"lease"`
	Credentials      `yaml:"credentials"`
	SigningKey       `yaml:"signing_key"`
	RepairConfig     `yaml:"repair"`
}

type GRPCServer struct {
	Host string `yaml:"host" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"MARKET_GRPC_PORT" env-default:"50061"`
}

type AdminHTTP struct {
	Host string `yaml:"host" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"MARKET_HTTP_PORT" env-default:"8091"`
}

// Store selects the state backend: "file" keeps a CBOR snapshot under Dir, "postgres"
// and "sqlite" go through gorm.
type Store struct {
	Backend        string `yaml:"backend" env:"MARKET_STORE_BACKEND" env-default:"file"`
	Dir            string `yaml:"dir" env:"MARKET_STORE_DIR" env-default:"./data"`
	Dsn            string `yaml:"dsn" env:"MARKET_DB_DSN"`
	MigrationsPath string `yaml:"migrations_path" env-default:"./migrations"`
	AutoMigrate    bool   `yaml:"auto_migrate" env-default:"true"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"MARKET_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env-default:"json"`
}

type KafkaService struct {
	Host  string `yaml:"host"`
	Port  string `yaml:"port"`
	Topic string `yaml:"topic" env-default:"market-audit"`
}

func (k KafkaService) Enabled() bool { return k.Host != "" }

type AnchorService struct {
	URL     string        `yaml:"url" env:"MARKET_ANCHOR_URL"`
	Network string        `yaml:"network" env-default:"ton"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

type SettlementConfig struct {
	// Mode is "contract" (escrow calls) or "anchor_only" (no fund movement).
	Mode         string        `yaml:"mode" env:"MARKET_SETTLEMENT_MODE" env-default:"anchor_only"`
	EscrowURL    string        `yaml:"escrow_url" env:"MARKET_ESCROW_URL"`
	TokenAddress string        `yaml:"token_address"`
	Timeout      time.Duration `yaml:"timeout" env-default:"10s"`
}

type RevocationConfig struct {
	WebhookURL    string        `yaml:"webhook_url" env:"MARKET_REVOCATION_WEBHOOK_URL"`
	APIKey        string        `yaml:"api_key" env:"MARKET_REVOCATION_API_KEY"`
	SigningSecret string        `yaml:"signing_secret" env:"MARKET_REVOCATION_SIGNING_SECRET"`
	Timeout       time.Duration `yaml:"timeout" env-default:"5s"`
	MaxAttempts   int           `yaml:"max_attempts" env-default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" env-default:"60s"`
	// DelayPolicy is "fixed" or "exponential".
	DelayPolicy   string        `yaml:"delay_policy" env-default:"fixed"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" env-default:"30m"`
	RetryInterval time.Duration `yaml:"retry_interval" env-default:"15s"`
	BatchSize     int           `yaml:"batch_size" env-default:"50"`
}

type DisputeConfig struct {
	Timeout             time.Duration `yaml:"timeout" env-default:"168h"`
	MaxEvidencePerParty int           `yaml:"max_evidence_per_party" env-default:"5"`
	SweepInterval       time.Duration `yaml:"sweep_interval" env-default:"1m"`
	SweepLimit          int           `yaml:"sweep_limit" env-default:"200"`
	// Arbiters may resolve or reject disputes; empty lets any actor do it.
	Arbiters []string `yaml:"arbiters" env:"MARKET_DISPUTE_ARBITERS" env-separator:","`
}

type LeaseConfig struct {
	// TokenFormat is "opaque" or "jwt".
	TokenFormat   string        `yaml:"token_format" env-default:"opaque"`
	JWTSecret     string        `yaml:"jwt_secret" env:"MARKET_LEASE_JWT_SECRET"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"30s"`
	SweepLimit    int           `yaml:"sweep_limit" env-default:"200"`
}

// Credentials selects where delivery payloads live: "inline", "file" or "redis".
type Credentials struct {
	Backend       string        `yaml:"backend" env:"MARKET_CREDENTIALS_BACKEND" env-default:"inline"`
	Dir           string        `yaml:"dir" env-default:"./data/credentials"`
	RedisAddr     string        `yaml:"redis_addr" env:"MARKET_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"MARKET_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl" env-default:"0s"`
}

type SigningKey struct {
	Path       string `yaml:"path" env-default:"./data/signing-key.age"`
	Passphrase string `yaml:"passphrase" env:"MARKET_SIGNING_KEY_PASSPHRASE"`
}

type RepairConfig struct {
	Interval time.Duration `yaml:"interval" env-default:"5m"`
	Limit    int           `yaml:"limit" env-default:"200"`
}

// Load reads the YAML file at path, then applies environment overrides and defaults.
func Load(path string) (*MarketConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}
	var cfg MarketConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad(path string) *MarketConfig {
	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path == "" {
		log.Fatalf("%s was not found\n", ConfigPathEnv)
	}
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("%v\n", err)
	}
	return cfg
}

func (c *MarketConfig) validate() error {
	switch c.Store.Backend {
	case "file", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.Dsn == "" {
		return fmt.Errorf("store.dsn is required for the postgres backend")
	}
	switch c.SettlementConfig.Mode {
	case "contract":
		if c.SettlementConfig.EscrowURL == "" {
			return fmt.Errorf("settlement.escrow_url is required in contract mode")
		}
	case "anchor_only":
	default:
		return fmt.Errorf("unknown settlement mode %q", c.SettlementConfig.Mode)
	}
	switch c.RevocationConfig.DelayPolicy {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("unknown revocation delay policy %q", c.RevocationConfig.DelayPolicy)
	}
	if c.RevocationConfig.MaxAttempts < 1 {
		return fmt.Errorf("revocation.max_attempts must be >= 1")
	}
	switch c.LeaseConfig.TokenFormat {
	case "opaque":
	case "jwt":
		if c.LeaseConfig.JWTSecret == "" {
			return fmt.Errorf("lease.jwt_secret is required for jwt tokens")
		}
	default:
		return fmt.Errorf("unknown lease token format %q", c.LeaseConfig.TokenFormat)
	}
	switch c.Credentials.Backend {
	case "inline", "file":
	case "redis":
		if c.Credentials.RedisAddr == "" {
			return fmt.Errorf("credentials.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend)
	}
	return nil
}
