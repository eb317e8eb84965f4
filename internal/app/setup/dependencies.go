package setup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LavaJover/shvark-market-service/internal/clock"
	"github.com/LavaJover/shvark-market-service/internal/client"
	"github.com/LavaJover/shvark-market-service/internal/config"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/credentials"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/filestore"
	publisher "github.com/LavaJover/shvark-market-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/keys"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/migrate"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/notifier"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/signature"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/tokens"
	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Dependencies holds every adapter the usecases are built from. Optional adapters
// are nil when their section of the config is empty.
type Dependencies struct {
	Config   *config.MarketConfig
	Logger   *slog.Logger
	Clock    clock.Clock
	Registry *prometheus.Registry
	Metrics  *metrics.MarketMetrics

	Store     domain.Store
	Publisher *publisher.DefaultKafkaPublisher
	Anchor    domain.ChainAnchorService
	Escrow    domain.EscrowService
	Revoker   domain.RevocationHandler
	Payloads  domain.PayloadStore
	Verifier  domain.SignatureVerifier
	Tokens    tokens.Issuer
	Signer    *keys.Signer

	closers []func() error
}

func InitializeDependencies(cfg *config.MarketConfig, logger *slog.Logger) (*Dependencies, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Clock:    clock.Real(),
		Registry: reg,
		Metrics:  metrics.NewMarketMetrics(reg),
		Verifier: signature.NewEd25519Verifier(),
	}

	store, err := initStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	deps.Store = store
	deps.closers = append(deps.closers, store.Close)

	if cfg.KafkaService.Enabled() {
		brokers := []string{fmt.Sprintf("%s:%s", cfg.KafkaService.Host, cfg.KafkaService.Port)}
		deps.Publisher = publisher.NewDefaultKafkaPublisher(brokers, cfg.KafkaService.Topic)
		deps.closers = append(deps.closers, deps.Publisher.Close)
	}

	if cfg.AnchorService.URL != "" {
		deps.Anchor = client.NewAnchorClient(cfg.AnchorService.URL, cfg.AnchorService.Network, cfg.AnchorService.Timeout)
	}
	if cfg.SettlementConfig.Mode == "contract" {
		deps.Escrow = client.NewEscrowClient(cfg.SettlementConfig.EscrowURL, cfg.SettlementConfig.Timeout)
	}

	if rc := cfg.RevocationConfig; rc.WebhookURL != "" {
		deps.Revoker = notifier.NewWebhookRevoker(rc.WebhookURL, rc.APIKey, rc.SigningSecret, rc.Timeout)
	} else {
		logger.Warn("revocation webhook is not configured, revocations succeed locally only")
		deps.Revoker = notifier.NoopRevoker{}
	}

	payloads, closer, err := initPayloads(cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	deps.Payloads = payloads
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}

	if cfg.LeaseConfig.TokenFormat == "jwt" {
		deps.Tokens = tokens.NewJWTIssuer(cfg.LeaseConfig.JWTSecret, "market")
	} else {
		deps.Tokens = tokens.OpaqueIssuer{}
	}

	signer, err := keys.LoadOrCreate(cfg.SigningKey.Path, cfg.SigningKey.Passphrase, keys.DefaultWorkFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	deps.Signer = signer

	logger.Info("dependencies ready",
		"store", cfg.Store.Backend,
		"credentials", cfg.Credentials.Backend,
		"settlement", cfg.SettlementConfig.Mode)
	return deps, nil
}

func initStore(cfg *config.MarketConfig, logger *slog.Logger) (domain.Store, error) {
	if cfg.Store.Backend == "file" {
		return filestore.Open(cfg.Store.Dir)
	}
	db, err := postgres.OpenDB(cfg.Store)
	if err != nil {
		return nil, err
	}
	if !cfg.Store.AutoMigrate {
		if err := migrate.RunMigrations(db, cfg.Store.MigrationsPath, logger); err != nil {
			return nil, err
		}
	}
	return repository.NewStore(db), nil
}

// initPayloads returns nil for the inline backend, which keeps payloads on the delivery.
func initPayloads(cfg config.Credentials) (domain.PayloadStore, func() error, error) {
	switch cfg.Backend {
	case "file":
		s, err := credentials.NewFileStore(cfg.Dir)
		return s, nil, err
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return credentials.NewRedisStore(rdb, cfg.TTL), rdb.Close, nil
	default:
		return nil, nil, nil
	}
}

// Close releases adapters in reverse order of creation.
func (d *Dependencies) Close() error {
	var result *multierror.Error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
