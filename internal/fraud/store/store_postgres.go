package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	txcontext "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/tx"
)

// PostgresStore persists signals in fraud_signals and reviews in
// fraud_signal_reviews. Signal rows are never updated.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// selectSignals joins each signal with its latest review.
const selectSignals = `
	SELECT s.id, s.type, s.severity, s.confidence, s.actor_id, s.evidence, s.fingerprint, s.detected_at,
		r.id, r.decision, r.reviewer, r.note, r.reviewed_at
	FROM fraud_signals s
	LEFT JOIN LATERAL (
		SELECT id, decision, reviewer, note, reviewed_at
		FROM fraud_signal_reviews
		WHERE signal_id = s.id
		ORDER BY reviewed_at DESC, id DESC
		LIMIT 1
	) r ON TRUE
`

func (s *PostgresStore) AppendIfAbsent(ctx context.Context, sig models.Signal) (bool, error) {
	evidence, err := json.Marshal(sig.Evidence)
	if err != nil {
		return false, fmt.Errorf("marshal evidence: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO fraud_signals (id, type, severity, confidence, actor_id, evidence, fingerprint, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (fingerprint) DO NOTHING
	`, uuid.UUID(sig.ID), string(sig.Type), string(sig.Severity), sig.Confidence, uuid.UUID(sig.ActorID),
		evidence, sig.Fingerprint, sig.DetectedAt)
	if err != nil {
		return false, fmt.Errorf("insert fraud signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert fraud signal rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) Get(ctx context.Context, signalID id.SignalID) (*models.Signal, error) {
	sig, err := scanSignal(s.execer(ctx).QueryRowContext(ctx, selectSignals+` WHERE s.id = $1`, uuid.UUID(signalID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get fraud signal: %w", err)
	}
	return sig, nil
}

func (s *PostgresStore) AppendReview(ctx context.Context, r models.Review) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO fraud_signal_reviews (id, signal_id, decision, reviewer, note, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, uuid.UUID(r.SignalID), string(r.Decision), r.Reviewer, r.Note, r.ReviewedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert fraud signal review: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID id.ActorID) ([]models.Signal, error) {
	return s.list(ctx, ` WHERE s.actor_id = $1`, uuid.UUID(actorID))
}

func (s *PostgresStore) ListSince(ctx context.Context, since time.Time) ([]models.Signal, error) {
	return s.list(ctx, ` WHERE s.detected_at >= $1`, since)
}

func (s *PostgresStore) list(ctx context.Context, where string, args ...any) ([]models.Signal, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, selectSignals+where+` ORDER BY s.detected_at, s.fingerprint`, args...)
	if err != nil {
		return nil, fmt.Errorf("query fraud signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fraud signal: %w", err)
		}
		out = append(out, *sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fraud signals: %w", err)
	}
	return out, nil
}

type signalRow interface {
	Scan(dest ...any) error
}

func scanSignal(row signalRow) (*models.Signal, error) {
	var (
		sig                      models.Signal
		sigID, actorID           uuid.UUID
		sigType, severity        string
		evidence                 []byte
		reviewID                 uuid.NullUUID
		decision, reviewer, note sql.NullString
		reviewedAt               sql.NullTime
	)
	if err := row.Scan(&sigID, &sigType, &severity, &sig.Confidence, &actorID, &evidence, &sig.Fingerprint, &sig.DetectedAt,
		&reviewID, &decision, &reviewer, &note, &reviewedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(evidence, &sig.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	sig.ID = id.SignalID(sigID)
	sig.ActorID = id.ActorID(actorID)
	sig.Type = models.SignalType(sigType)
	sig.Severity = models.Severity(severity)
	if reviewID.Valid {
		sig.Review = &models.Review{
			ID:         reviewID.UUID,
			SignalID:   sig.ID,
			Decision:   models.Decision(decision.String),
			Reviewer:   reviewer.String,
			Note:       note.String,
			ReviewedAt: reviewedAt.Time,
		}
	}
	return &sig, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
