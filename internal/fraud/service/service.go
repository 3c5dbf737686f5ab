// Package service runs fraud sweeps: it snapshots the ledger, runs the
// detectors, persists new findings, asks the risk engine to recompute the
// affected actors and promotes records that cleared the verification hold.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/detectors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/metrics"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
)

// Store persists signals append-only, deduplicated by fingerprint.
type Store interface {
	AppendIfAbsent(ctx context.Context, sig models.Signal) (bool, error)
	Get(ctx context.Context, signalID id.SignalID) (*models.Signal, error)
	AppendReview(ctx context.Context, r models.Review) error
	ListByActor(ctx context.Context, actorID id.ActorID) ([]models.Signal, error)
	ListSince(ctx context.Context, since time.Time) ([]models.Signal, error)
}

// Ledger is the read side of the attribution ledger plus verification.
type Ledger interface {
	ListCreatedSince(ctx context.Context, since time.Time) ([]attribution.Record, error)
	ListEventsSince(ctx context.Context, since time.Time) ([]attribution.Event, error)
	ListUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]attribution.Record, error)
	Verify(ctx context.Context, userIDs []id.UserID) (int, error)
}

// Accounts resolves each actor's own user account.
type Accounts interface {
	AccountUsers(ctx context.Context, actorIDs []id.ActorID) (map[id.ActorID]id.UserID, error)
}

// RiskEngine recomputes actor standing from the signal set.
type RiskEngine interface {
	Recompute(ctx context.Context, actorID id.ActorID) (*risk.State, error)
	RecomputeAfterOverturn(ctx context.Context, actorID id.ActorID) (*risk.State, error)
	Status(ctx context.Context, actorID id.ActorID) (risk.Status, error)
	State(ctx context.Context, actorID id.ActorID) (*risk.State, error)
}

// Windows bounds the data each sweep reads.
type Windows struct {
	Records          time.Duration
	Ring             time.Duration
	Engagement       time.Duration
	VerificationHold time.Duration
	// SignalHorizon bounds the signals consulted before promoting records.
	SignalHorizon time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		Records:          8 * 24 * time.Hour,
		Ring:             30 * 24 * time.Hour,
		Engagement:       30 * 24 * time.Hour,
		VerificationHold: 24 * time.Hour,
		SignalHorizon:    30 * 24 * time.Hour,
	}
}

type Service struct {
	store    Store
	ledger   Ledger
	accounts Accounts
	risk     RiskEngine

	cfg     detectors.Config
	windows Windows
	network *detectors.Network

	logger  *slog.Logger
	auditor audit.Emitter
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithDetectorConfig(cfg detectors.Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithWindows(w Windows) Option {
	return func(s *Service) { s.windows = w }
}

// WithNetwork enables the geo-spoof and vpn-proxy detectors.
func WithNetwork(n *detectors.Network) Option {
	return func(s *Service) { s.network = n }
}

func New(store Store, ledger Ledger, accounts Accounts, riskEngine RiskEngine, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("fraud signal store is required")
	}
	if ledger == nil {
		return nil, errors.New("attribution ledger is required")
	}
	if accounts == nil {
		return nil, errors.New("actor accounts are required")
	}
	if riskEngine == nil {
		return nil, errors.New("risk engine is required")
	}
	s := &Service{
		store:    store,
		ledger:   ledger,
		accounts: accounts,
		risk:     riskEngine,
		cfg:      detectors.DefaultConfig(),
		windows:  DefaultWindows(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
