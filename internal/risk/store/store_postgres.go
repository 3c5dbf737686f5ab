package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	txcontext "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/tx"
)

// PostgresStore persists actor_risk rows guarded by a version column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, actorID id.ActorID) (*models.State, error) {
	const query = `
		SELECT actor_id, risk_score, account_status, signal_count, version, last_recalculated_at
		FROM actor_risk
		WHERE actor_id = $1
	`
	var (
		st     models.State
		actor  uuid.UUID
		status string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(actorID)).Scan(
		&actor,
		&st.RiskScore,
		&status,
		&st.SignalCount,
		&st.Version,
		&st.LastRecalculatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find actor risk: %w", err)
	}
	st.ActorID, st.Status = id.ActorID(actor), models.Status(status)
	st.LastRecalculatedAt = st.LastRecalculatedAt.UTC()
	return &st, nil
}

func (s *PostgresStore) CompareAndSave(ctx context.Context, state models.State, expected int64) error {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		const insert = `
			INSERT INTO actor_risk (actor_id, risk_score, account_status, signal_count, version, last_recalculated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (actor_id) DO NOTHING
		`
		res, err = s.execer(ctx).ExecContext(ctx, insert,
			uuid.UUID(state.ActorID), state.RiskScore, string(state.Status), state.SignalCount, state.Version, state.LastRecalculatedAt)
	} else {
		const update = `
			UPDATE actor_risk
			SET risk_score = $2, account_status = $3, signal_count = $4, version = $5, last_recalculated_at = $6
			WHERE actor_id = $1 AND version = $7
		`
		res, err = s.execer(ctx).ExecContext(ctx, update,
			uuid.UUID(state.ActorID), state.RiskScore, string(state.Status), state.SignalCount, state.Version, state.LastRecalculatedAt, expected)
	}
	if err != nil {
		return fmt.Errorf("save actor risk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save actor risk rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrStaleVersion
	}
	return nil
}
