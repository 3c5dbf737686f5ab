package main

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	actorservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/service"
	actorstore "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/store"
	attributionservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/service"
	attributionstore "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/store"
	fraudservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/service"
	fraudstore "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/store"
	payoutservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/service"
	payoutstore "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/store"
	riskservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/service"
	riskstore "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/store"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	auditmemory "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/store/memory"
	auditpg "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/store/postgres"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/worker"
	txcontext "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/tx"
)

type payoutStore interface {
	payoutservice.Store
	CommittedTokens(ctx context.Context, actorID id.ActorID) (decimal.Decimal, error)
}

type signalStore interface {
	fraudservice.Store
	riskservice.Signals
}

// stores is the persistence layer for one process: Postgres when a database
// is configured, in memory otherwise.
type stores struct {
	actors  actorservice.Store
	records attributionservice.Store
	signals signalStore
	risk    riskservice.Store
	payouts payoutStore
	audit   audit.Store
	// outbox is nil in memory mode; the relay does not run.
	outbox worker.Outbox
	runner txcontext.Runner
}

func newStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			actors:  actorstore.NewInMemory(),
			records: attributionstore.NewInMemory(),
			signals: fraudstore.NewInMemory(),
			risk:    riskstore.NewInMemory(),
			payouts: payoutstore.NewInMemory(),
			audit:   auditmemory.NewInMemoryStore(),
			runner:  txcontext.NopRunner{},
		}
	}
	auditStore := auditpg.New(db)
	return stores{
		actors:  actorstore.NewPostgres(db),
		records: attributionstore.NewPostgres(db),
		signals: fraudstore.NewPostgres(db),
		risk:    riskstore.NewPostgres(db),
		payouts: payoutstore.NewPostgres(db),
		audit:   auditStore,
		outbox:  auditStore,
		runner:  txcontext.NewSQLRunner(db),
	}
}
