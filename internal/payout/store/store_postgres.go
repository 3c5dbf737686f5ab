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
	"github.com/shopspring/decimal"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	txcontext "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists payout_requests. The partial unique index
// payout_requests_one_open_per_actor rejects a second open request.
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

const requestColumns = `id, actor_id, compensation_model, breakdown, amount_tokens, currency, status,
	fraud_checked, fraud_check_result, hold_reasons, decided_by, decision_note,
	settlement_attempts, last_settlement_error, transaction_id, created_at, updated_at, settled_at`

func (s *PostgresStore) Create(ctx context.Context, req models.Request) error {
	breakdown, err := json.Marshal(req.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO payout_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		uuid.UUID(req.ID), uuid.UUID(req.ActorID), string(req.Model), breakdown, req.AmountTokens.String(), req.Currency,
		string(req.Status), req.FraudChecked, string(req.FraudCheckResult), pq.Array(nonNil(req.HoldReasons)),
		req.DecidedBy, req.DecisionNote, req.SettlementAttempts, req.LastSettlementError, req.TransactionID,
		req.CreatedAt, req.UpdatedAt, req.SettledAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert payout request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID id.PayoutRequestID) (*models.Request, error) {
	return s.one(ctx, `SELECT `+requestColumns+` FROM payout_requests WHERE id = $1`, uuid.UUID(requestID))
}

func (s *PostgresStore) FindOpen(ctx context.Context, actorID id.ActorID) (*models.Request, error) {
	return s.one(ctx, `
		SELECT `+requestColumns+` FROM payout_requests
		WHERE actor_id = $1 AND status IN ('pending', 'held_for_review', 'approved')
	`, uuid.UUID(actorID))
}

func (s *PostgresStore) one(ctx context.Context, query string, args ...any) (*models.Request, error) {
	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payout request: %w", err)
	}
	return req, nil
}

// Update rewrites the mutable columns when the stored status still equals
// from.
func (s *PostgresStore) Update(ctx context.Context, req models.Request, from models.Status) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE payout_requests
		SET status = $2, fraud_check_result = $3, hold_reasons = $4, decided_by = $5, decision_note = $6,
			settlement_attempts = $7, last_settlement_error = $8, transaction_id = $9,
			updated_at = $10, settled_at = $11
		WHERE id = $1 AND status = $12
	`,
		uuid.UUID(req.ID), string(req.Status), string(req.FraudCheckResult), pq.Array(nonNil(req.HoldReasons)),
		req.DecidedBy, req.DecisionNote, req.SettlementAttempts, req.LastSettlementError, req.TransactionID,
		req.UpdatedAt, req.SettledAt, string(from),
	)
	if err != nil {
		return fmt.Errorf("update payout request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payout request rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Get(ctx, req.ID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.Request, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.list(ctx, `WHERE status = $1 ORDER BY created_at, id LIMIT $2`, string(status), limit)
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID id.ActorID) ([]models.Request, error) {
	return s.list(ctx, `WHERE actor_id = $1 ORDER BY created_at, id`, uuid.UUID(actorID))
}

func (s *PostgresStore) CommittedTokens(ctx context.Context, actorID id.ActorID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT SUM(amount_tokens) FROM payout_requests
		WHERE actor_id = $1 AND status IN ('pending', 'held_for_review', 'approved', 'settled')
	`, uuid.UUID(actorID)).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum committed tokens: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (s *PostgresStore) list(ctx context.Context, tail string, args ...any) ([]models.Request, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT `+requestColumns+` FROM payout_requests `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query payout requests: %w", err)
	}
	defer rows.Close()

	var out []models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout request: %w", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout requests: %w", err)
	}
	return out, nil
}

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (*models.Request, error) {
	var (
		req                        models.Request
		reqID, actorID             uuid.UUID
		model, status, checkResult string
		breakdown                  []byte
		amount                     decimal.Decimal
		holdReasons                pq.StringArray
		settledAt                  sql.NullTime
		createdAt, updatedAt       time.Time
	)
	if err := row.Scan(
		&reqID, &actorID, &model, &breakdown, &amount, &req.Currency, &status,
		&req.FraudChecked, &checkResult, &holdReasons, &req.DecidedBy, &req.DecisionNote,
		&req.SettlementAttempts, &req.LastSettlementError, &req.TransactionID, &createdAt, &updatedAt, &settledAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(breakdown, &req.Breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	req.ID, req.ActorID = id.PayoutRequestID(reqID), id.ActorID(actorID)
	req.Model, req.Status, req.FraudCheckResult = models.Model(model), models.Status(status), models.CheckResult(checkResult)
	req.AmountTokens = amount
	req.HoldReasons = []string(holdReasons)
	req.CreatedAt, req.UpdatedAt = createdAt.UTC(), updatedAt.UTC()
	if settledAt.Valid {
		at := settledAt.Time.UTC()
		req.SettledAt = &at
	}
	return &req, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
