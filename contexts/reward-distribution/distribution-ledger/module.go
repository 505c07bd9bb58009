package distributionledger

import (
	"log/slog"

	httpadapter "merkledrop/contexts/reward-distribution/distribution-ledger/adapters/http"
	"merkledrop/contexts/reward-distribution/distribution-ledger/adapters/memory"
	"merkledrop/contexts/reward-distribution/distribution-ledger/application"
	"merkledrop/contexts/reward-distribution/distribution-ledger/ports"

	"github.com/ethereum/go-ethereum/common"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
	Bank    *memory.Bank
}

type Dependencies struct {
	Repository                  ports.Repository
	Custody                     ports.TokenCustody
	Outbox                      ports.OutboxWriter
	Clock                       ports.Clock
	IDGenerator                 ports.IDGenerator
	Owner                       common.Address
	Vault                       common.Address
	DisableClaimedEventEmission bool
	Logger                      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:                        deps.Repository,
		Custody:                     deps.Custody,
		Outbox:                      deps.Outbox,
		Clock:                       deps.Clock,
		IDGen:                       deps.IDGenerator,
		Owner:                       deps.Owner,
		Vault:                       deps.Vault,
		DisableClaimedEventEmission: deps.DisableClaimedEventEmission,
		Logger:                      deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(owner common.Address, vault common.Address, logger *slog.Logger) Module {
	store := memory.NewStore()
	bank := memory.NewBank(vault)
	module := NewModule(Dependencies{
		Repository:  store,
		Custody:     bank,
		Outbox:      store,
		Clock:       store,
		IDGenerator: store,
		Owner:       owner,
		Vault:       vault,
		Logger:      logger,
	})
	module.Store = store
	module.Bank = bank
	return module
}
