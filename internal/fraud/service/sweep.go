package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/detectors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// SweepReport aggregates one sweep. Per-record and per-actor problems are
// counted here instead of failing the sweep.
type SweepReport struct {
	Kind              string       `json:"kind"`
	StartedAt         time.Time    `json:"started_at"`
	Records           int          `json:"records"`
	Emitted           int          `json:"emitted"`
	Duplicates        int          `json:"duplicates"`
	Skipped           int          `json:"skipped"`
	DetectorFailures  int          `json:"detector_failures"`
	PersistFailures   int          `json:"persist_failures"`
	RecomputeFailures int          `json:"recompute_failures"`
	Verified          int          `json:"verified"`
	Actors            []id.ActorID `json:"actors,omitempty"`
}

// RunFast runs every single-pass detector concurrently over the recent
// window.
func (s *Service) RunFast(ctx context.Context) (SweepReport, error) {
	return s.sweep(ctx, "fast", s.windows.Records, detectors.Fast(s.cfg), true)
}

// RunRing runs the graph detector over the longer ring window.
func (s *Service) RunRing(ctx context.Context) (SweepReport, error) {
	return s.sweep(ctx, "ring", s.windows.Ring, []detectors.Detector{detectors.Ring(s.cfg)}, false)
}

func (s *Service) sweep(ctx context.Context, kind string, lookback time.Duration, battery []detectors.Detector, promote bool) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "fraud.sweep."+kind)
	defer span.End()

	now := requestcontext.Now(ctx)
	report := SweepReport{Kind: kind, StartedAt: now}
	defer func() { s.metrics.ObserveSweep(kind, time.Since(now)) }()

	snap, err := s.snapshot(ctx, now, lookback)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return report, err
	}
	report.Records = len(snap.Records)

	signals := s.runDetectors(ctx, battery, snap, &report)
	created, redetected := s.persist(ctx, signals, &report)
	s.recompute(ctx, s.withStale(ctx, created, redetected), &report)

	if promote {
		if err := s.promote(ctx, now, &report); err != nil {
			span.RecordError(err)
			s.logger.ErrorContext(ctx, "verification promotion failed", "error", err)
		}
	}

	span.SetAttributes(
		attribute.Int("fraud.records", report.Records),
		attribute.Int("fraud.emitted", report.Emitted),
		attribute.Int("fraud.duplicates", report.Duplicates),
		attribute.Int("fraud.skipped", report.Skipped),
		attribute.Int("fraud.recompute_failures", report.RecomputeFailures),
	)
	s.logger.InfoContext(ctx, "fraud sweep finished",
		"kind", kind,
		"records", report.Records,
		"emitted", report.Emitted,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"detector_failures", report.DetectorFailures,
		"persist_failures", report.PersistFailures,
		"recompute_failures", report.RecomputeFailures,
		"verified", report.Verified,
	)
	return report, nil
}

func (s *Service) snapshot(ctx context.Context, now time.Time, lookback time.Duration) (detectors.Snapshot, error) {
	records, err := s.ledger.ListCreatedSince(ctx, now.Add(-lookback))
	if err != nil {
		return detectors.Snapshot{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load attributions for sweep")
	}
	events, err := s.ledger.ListEventsSince(ctx, now.Add(-s.windows.Engagement))
	if err != nil {
		return detectors.Snapshot{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load attribution events for sweep")
	}
	accounts, err := s.accounts.AccountUsers(ctx, distinctActors(records))
	if err != nil {
		return detectors.Snapshot{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load actor accounts for sweep")
	}
	flagged, err := s.store.ListSince(ctx, now.Add(-s.cfg.ClickFarmWindow))
	if err != nil {
		return detectors.Snapshot{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load recent signals for sweep")
	}
	return detectors.Snapshot{
		Now:          now,
		Records:      records,
		Events:       events,
		AccountUsers: accounts,
		Network:      s.network,
		Flagged:      flagged,
	}, nil
}

// runDetectors fans the battery out over an errgroup. Detectors share only
// the read-only snapshot; each writes its own result slot.
func (s *Service) runDetectors(ctx context.Context, battery []detectors.Detector, snap detectors.Snapshot, report *SweepReport) []models.Signal {
	results := make([]detectors.Result, len(battery))
	failed := make([]bool, len(battery))
	var g errgroup.Group
	for i, d := range battery {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					failed[i] = true
					err = fmt.Errorf("detector %s panicked: %v", d.Type, r)
				}
			}()
			results[i] = d.Detect(snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "detector failed", "error", err)
	}

	var signals []models.Signal
	for i, d := range battery {
		if failed[i] {
			report.DetectorFailures++
			s.metrics.IncrementDetectorFailure(string(d.Type))
			continue
		}
		report.Skipped += results[i].Skipped
		s.metrics.AddSkipped(string(d.Type), results[i].Skipped)
		signals = append(signals, results[i].Signals...)
	}
	return signals
}

// persist appends new findings. It returns the actors that received a new
// signal and the actors whose findings were already stored.
func (s *Service) persist(ctx context.Context, signals []models.Signal, report *SweepReport) (created, redetected []id.ActorID) {
	affected := map[id.ActorID]struct{}{}
	seen := map[id.ActorID]struct{}{}
	for _, sig := range signals {
		sig.ID = id.NewSignalID()
		created, err := s.store.AppendIfAbsent(ctx, sig)
		if err != nil {
			report.PersistFailures++
			s.logger.ErrorContext(ctx, "failed to persist fraud signal",
				"type", sig.Type,
				"actor_id", sig.ActorID.String(),
				"error", err,
			)
			continue
		}
		if !created {
			report.Duplicates++
			seen[sig.ActorID] = struct{}{}
			continue
		}
		report.Emitted++
		s.metrics.IncrementEmitted(string(sig.Type))
		affected[sig.ActorID] = struct{}{}
		audit.Log(ctx, s.logger, s.auditor, audit.Event{
			ActorID:  sig.ActorID,
			Subject:  sig.ID.String(),
			Action:   string(audit.EventSignalDetected),
			Decision: string(sig.Severity),
			Reason:   string(sig.Type),
		}, "confidence", sig.Confidence)
	}
	for a := range affected {
		delete(seen, a)
	}
	return sortedActors(affected), sortedActors(seen)
}

// withStale adds the re-detected actors whose stored risk state does not
// reflect their stored signals, so a recompute that failed or was cut short
// in an earlier sweep is retried.
func (s *Service) withStale(ctx context.Context, created, redetected []id.ActorID) []id.ActorID {
	out := created
	for _, actorID := range redetected {
		if ctx.Err() != nil {
			break
		}
		stale, err := s.stale(ctx, actorID)
		if err != nil {
			s.logger.WarnContext(ctx, "risk staleness check failed",
				"actor_id", actorID.String(),
				"error", err,
			)
			stale = true
		}
		if stale {
			out = append(out, actorID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s *Service) stale(ctx context.Context, actorID id.ActorID) (bool, error) {
	st, err := s.risk.State(ctx, actorID)
	if err != nil {
		return false, err
	}
	signals, err := s.store.ListByActor(ctx, actorID)
	if err != nil {
		return false, err
	}
	score, active := risk.Score(signals)
	return st.Version == 0 || st.SignalCount != active || st.RiskScore != score, nil
}

func sortedActors(set map[id.ActorID]struct{}) []id.ActorID {
	actors := make([]id.ActorID, 0, len(set))
	for a := range set {
		actors = append(actors, a)
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i].String() < actors[j].String() })
	return actors
}

func (s *Service) recompute(ctx context.Context, actors []id.ActorID, report *SweepReport) {
	report.Actors = actors
	for _, actorID := range actors {
		if ctx.Err() != nil {
			report.RecomputeFailures++
			continue
		}
		if _, err := s.risk.Recompute(ctx, actorID); err != nil {
			report.RecomputeFailures++
			s.logger.ErrorContext(ctx, "risk recompute failed",
				"actor_id", actorID.String(),
				"error", err,
			)
		}
	}
}

// promote verifies records past the hold that no active signal names and
// whose actor is in good standing.
func (s *Service) promote(ctx context.Context, now time.Time, report *SweepReport) error {
	candidates, err := s.ledger.ListUnverifiedBefore(ctx, now.Add(-s.windows.VerificationHold))
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}
	signals, err := s.store.ListSince(ctx, now.Add(-s.windows.SignalHorizon))
	if err != nil {
		return err
	}
	implicated := map[id.UserID]struct{}{}
	for i := range signals {
		if !signals[i].Active() {
			continue
		}
		for _, u := range signals[i].Evidence.UserIDs {
			implicated[u] = struct{}{}
		}
	}

	standing := map[id.ActorID]bool{}
	var eligible []id.UserID
	for _, rec := range candidates {
		if _, bad := implicated[rec.UserID]; bad {
			continue
		}
		ok, seen := standing[rec.ActorID]
		if !seen {
			status, err := s.risk.Status(ctx, rec.ActorID)
			if err != nil {
				s.logger.WarnContext(ctx, "risk status unavailable, skipping promotion",
					"actor_id", rec.ActorID.String(),
					"error", err,
				)
				standing[rec.ActorID] = false
				continue
			}
			ok = !status.WorseThan(risk.StatusWatchList)
			standing[rec.ActorID] = ok
		}
		if ok {
			eligible = append(eligible, rec.UserID)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	n, err := s.ledger.Verify(ctx, eligible)
	if err != nil {
		return err
	}
	report.Verified = n
	return nil
}

func distinctActors(records []attribution.Record) []id.ActorID {
	seen := map[id.ActorID]struct{}{}
	var out []id.ActorID
	for _, r := range records {
		if _, ok := seen[r.ActorID]; !ok {
			seen[r.ActorID] = struct{}{}
			out = append(out, r.ActorID)
		}
	}
	return out
}
