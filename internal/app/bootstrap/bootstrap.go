package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	distributionledger "merkledrop/contexts/reward-distribution/distribution-ledger"
	badgeradapter "merkledrop/contexts/reward-distribution/distribution-ledger/adapters/badger"
	"merkledrop/contexts/reward-distribution/distribution-ledger/adapters/memory"
	postgresadapter "merkledrop/contexts/reward-distribution/distribution-ledger/adapters/postgres"
	workerapp "merkledrop/contexts/reward-distribution/distribution-ledger/application/workers"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"
	"merkledrop/internal/platform/config"
	"merkledrop/internal/platform/db"
	"merkledrop/internal/platform/httpserver"
	"merkledrop/internal/platform/kvstore"
	"merkledrop/internal/platform/messaging"

	"github.com/ethereum/go-ethereum/common"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server *httpserver.Server
	closer func() error
	logger *slog.Logger
}

type WorkerApp struct {
	outboxRelay   workerapp.OutboxRelay
	claimActivity *workerapp.ClaimActivityConsumer
	closer        func() error
	pollInterval  time.Duration
	logger        *slog.Logger
}

// ledgerBackend bundles the repository and outbox implementations picked
// by LEDGER_BACKEND, plus the handle to release on shutdown.
type ledgerBackend struct {
	repository ports.Repository
	outbox     ports.OutboxWriter
	relay      ports.OutboxRepository
	clock      ports.Clock
	idGen      ports.IDGenerator
	closer     func() error
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	backend, bank, err := buildBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	owner, vault, err := resolveAccounts(cfg)
	if err != nil {
		_ = backend.closer()
		return nil, err
	}

	module := distributionledger.NewModule(distributionledger.Dependencies{
		Repository:                  backend.repository,
		Custody:                     bank,
		Outbox:                      backend.outbox,
		Clock:                       backend.clock,
		IDGenerator:                 backend.idGen,
		Owner:                       owner,
		Vault:                       vault,
		DisableClaimedEventEmission: cfg.DisableClaimedEvent,
		Logger:                      logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server: server,
		closer: backend.closer,
		logger: logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	backend, _, err := buildBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = backend.closer()
		return nil, err
	}

	return &WorkerApp{
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    backend.relay,
			Publisher: bus,
			Clock:     backend.clock,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		claimActivity: &workerapp.ClaimActivityConsumer{
			Subscriber: bus,
			Logger:     logger,
		},
		closer:       backend.closer,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func buildBackend(cfg config.Config, logger *slog.Logger) (ledgerBackend, ports.TokenCustody, error) {
	_, vault, err := resolveAccounts(cfg)
	if err != nil {
		return ledgerBackend{}, nil, err
	}
	// Custody is in-process for every backend until an external custody
	// integration lands.
	bank := memory.NewBank(vault)

	switch cfg.LedgerBackend {
	case config.BackendMemory:
		store := memory.NewStore()
		return ledgerBackend{
			repository: store,
			outbox:     store,
			relay:      store,
			clock:      store,
			idGen:      store,
			closer:     func() error { return nil },
		}, bank, nil

	case config.BackendPostgres:
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return ledgerBackend{}, nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.Migrate(); err != nil {
			_ = pg.Close()
			return ledgerBackend{}, nil, err
		}
		return ledgerBackend{
			repository: repo,
			outbox:     repo,
			relay:      repo,
			clock:      postgresadapter.SystemClock{},
			idGen:      postgresadapter.UUIDGenerator{},
			closer:     pg.Close,
		}, bank, nil

	case config.BackendBadger:
		kv, err := kvstore.Open(cfg.BadgerPath)
		if err != nil {
			return ledgerBackend{}, nil, err
		}
		store := badgeradapter.NewStore(kv.DB, logger)
		return ledgerBackend{
			repository: store,
			outbox:     store,
			relay:      store,
			clock:      postgresadapter.SystemClock{},
			idGen:      postgresadapter.UUIDGenerator{},
			closer:     kv.Close,
		}, bank, nil

	default:
		return ledgerBackend{}, nil, fmt.Errorf("bootstrap: unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func resolveAccounts(cfg config.Config) (common.Address, common.Address, error) {
	if !common.IsHexAddress(cfg.OwnerAddress) {
		return common.Address{}, common.Address{}, fmt.Errorf("bootstrap: OWNER_ADDRESS %q is not a valid address", cfg.OwnerAddress)
	}
	if !common.IsHexAddress(cfg.VaultAddress) {
		return common.Address{}, common.Address{}, fmt.Errorf("bootstrap: VAULT_ADDRESS %q is not a valid address", cfg.VaultAddress)
	}
	return common.HexToAddress(cfg.OwnerAddress), common.HexToAddress(cfg.VaultAddress), nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.closer != nil {
		return a.closer()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.claimActivity.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.closer != nil {
		return w.closer()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
