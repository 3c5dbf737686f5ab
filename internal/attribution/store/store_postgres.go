package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	txcontext "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/tx"
)

// PostgresStore persists attributions. Every mutation is a single
// conditional statement so concurrent callers never lose updates.
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

const recordColumns = `id, user_id, actor_id, method, device_id, ip, latitude, longitude, first_touch_at,
	registered_at, kyc_completed_at, first_chat_at, first_purchase_at, lifetime_revenue, premium,
	verified, fraud_score, locked, frozen, fraudulent`

// InsertIfAbsent writes the record unless the user is already attributed.
// The unique key on user_id arbitrates racing first touches; losers read the
// winner's row.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, rec models.Record) (models.Record, bool, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO attributions (id, user_id, actor_id, method, device_id, ip, latitude, longitude, first_touch_at,
			lifetime_revenue, verified, fraud_score, locked, frozen, fraudulent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, FALSE, 0, TRUE, FALSE, FALSE)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+recordColumns,
		uuid.UUID(rec.ID), uuid.UUID(rec.UserID), uuid.UUID(rec.ActorID), string(rec.Method),
		rec.Provenance.DeviceID, rec.Provenance.IP, nullFloat(rec.Provenance.Latitude), nullFloat(rec.Provenance.Longitude),
		rec.Provenance.FirstTouchAt,
	)
	created, err := scanRecord(row)
	if err == nil {
		return *created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, false, fmt.Errorf("insert attribution: %w", err)
	}
	existing, err := s.Get(ctx, rec.UserID)
	if err != nil {
		return models.Record{}, false, fmt.Errorf("read winning attribution: %w", err)
	}
	return *existing, false, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID) (*models.Record, error) {
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM attributions WHERE user_id = $1`, uuid.UUID(userID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get attribution: %w", err)
	}
	return rec, nil
}

// AdvanceFunnel sets the stage column only while it is still NULL.
func (s *PostgresStore) AdvanceFunnel(ctx context.Context, userID id.UserID, stage models.Stage, at time.Time) (bool, error) {
	col := stage.Column()
	if col == "" {
		return false, fmt.Errorf("unknown funnel stage %q", stage)
	}
	// col comes from a closed set, never from input.
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE attributions SET `+col+` = $2 WHERE user_id = $1 AND `+col+` IS NULL`,
		uuid.UUID(userID), at)
	if err != nil {
		return false, fmt.Errorf("advance funnel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance funnel rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) AddRevenue(ctx context.Context, userID id.UserID, amount decimal.Decimal) error {
	return s.updateOne(ctx, "add revenue",
		`UPDATE attributions SET lifetime_revenue = lifetime_revenue + $2 WHERE user_id = $1`,
		uuid.UUID(userID), amount.String())
}

// AccrueRevenue records a purchase event and adds its amount in one statement.
// The amount is added only when the event id was not seen before.
func (s *PostgresStore) AccrueRevenue(ctx context.Context, e models.Event, amount decimal.Decimal) (bool, error) {
	n, err := s.updateMany(ctx, "accrue revenue", `
		WITH ins AS (
			INSERT INTO attribution_events (id, user_id, actor_id, kind, device_id, ip, occurred_at)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE EXISTS (SELECT 1 FROM attributions WHERE user_id = $2)
			ON CONFLICT (id) DO NOTHING
			RETURNING user_id
		)
		UPDATE attributions SET lifetime_revenue = lifetime_revenue + $8
		WHERE user_id IN (SELECT user_id FROM ins)
	`, uuid.UUID(e.ID), uuid.UUID(e.UserID), uuid.UUID(e.ActorID), string(e.Kind), e.DeviceID, e.IP, e.OccurredAt, amount.String())
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, e.UserID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) SetPremium(ctx context.Context, userID id.UserID, premium bool) error {
	return s.updateOne(ctx, "set premium",
		`UPDATE attributions SET premium = $2 WHERE user_id = $1`,
		uuid.UUID(userID), premium)
}

func (s *PostgresStore) Freeze(ctx context.Context, userID id.UserID, fraudScore float64) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE attributions SET frozen = TRUE, verified = FALSE, fraud_score = $2
		WHERE user_id = $1 AND (NOT frozen OR verified)
	`, uuid.UUID(userID), fraudScore)
	if err != nil {
		return false, fmt.Errorf("freeze attribution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("freeze rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, userID); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

func (s *PostgresStore) FreezeUnverifiedByActor(ctx context.Context, actorID id.ActorID, fraudScore float64) (int, error) {
	return s.updateMany(ctx, "freeze actor attributions", `
		UPDATE attributions SET frozen = TRUE, fraud_score = $2
		WHERE actor_id = $1 AND NOT verified AND NOT frozen
	`, uuid.UUID(actorID), fraudScore)
}

func (s *PostgresStore) MarkFraudulent(ctx context.Context, actorID id.ActorID, userIDs []id.UserID, fraudScore float64) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	return s.updateMany(ctx, "mark attributions fraudulent", `
		UPDATE attributions SET fraudulent = TRUE, frozen = TRUE, verified = FALSE, fraud_score = $3
		WHERE actor_id = $1 AND user_id = ANY($2::uuid[]) AND NOT fraudulent
	`, uuid.UUID(actorID), pq.Array(userKeys(userIDs)), fraudScore)
}

func (s *PostgresStore) UnfreezeByActor(ctx context.Context, actorID id.ActorID) (int, error) {
	return s.updateMany(ctx, "unfreeze actor attributions", `
		UPDATE attributions SET frozen = FALSE, fraud_score = 0
		WHERE actor_id = $1 AND frozen AND NOT fraudulent
	`, uuid.UUID(actorID))
}

func (s *PostgresStore) Verify(ctx context.Context, userIDs []id.UserID) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	return s.updateMany(ctx, "verify attributions", `
		UPDATE attributions SET verified = TRUE
		WHERE user_id = ANY($1::uuid[]) AND NOT verified AND NOT frozen AND NOT fraudulent
	`, pq.Array(userKeys(userIDs)))
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID id.ActorID) ([]models.Record, error) {
	return s.list(ctx, `WHERE actor_id = $1`, uuid.UUID(actorID))
}

func (s *PostgresStore) ListCreatedSince(ctx context.Context, since time.Time) ([]models.Record, error) {
	return s.list(ctx, `WHERE first_touch_at >= $1`, since)
}

func (s *PostgresStore) ListUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]models.Record, error) {
	return s.list(ctx, `WHERE NOT verified AND NOT frozen AND NOT fraudulent AND first_touch_at < $1`, cutoff)
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e models.Event) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO attribution_events (id, user_id, actor_id, kind, device_id, ip, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(e.ID), uuid.UUID(e.UserID), uuid.UUID(e.ActorID), string(e.Kind), e.DeviceID, e.IP, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("append attribution event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEventsSince(ctx context.Context, since time.Time) ([]models.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, user_id, actor_id, kind, device_id, ip, occurred_at
		FROM attribution_events WHERE occurred_at >= $1 ORDER BY occurred_at, id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query attribution events: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var (
			e                models.Event
			eid, user, actor uuid.UUID
			kind             string
		)
		if err := rows.Scan(&eid, &user, &actor, &kind, &e.DeviceID, &e.IP, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan attribution event: %w", err)
		}
		e.ID, e.UserID, e.ActorID, e.Kind = id.EventID(eid), id.UserID(user), id.ActorID(actor), models.EventKind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attribution events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) list(ctx context.Context, where string, args ...any) ([]models.Record, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM attributions `+where+` ORDER BY first_touch_at, user_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query attributions: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attribution: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attributions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) updateOne(ctx context.Context, op, query string, args ...any) error {
	n, err := s.updateMany(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) updateMany(ctx context.Context, op, query string, args ...any) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return int(n), nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var (
		rec                                  models.Record
		rid, user, actor                     uuid.UUID
		method, revenue                      string
		lat, lon                             sql.NullFloat64
		registered, kyc, firstChat, firstBuy sql.NullTime
	)
	err := row.Scan(&rid, &user, &actor, &method, &rec.Provenance.DeviceID, &rec.Provenance.IP, &lat, &lon,
		&rec.Provenance.FirstTouchAt, &registered, &kyc, &firstChat, &firstBuy, &revenue, &rec.Premium,
		&rec.Verified, &rec.FraudScore, &rec.Locked, &rec.Frozen, &rec.Fraudulent)
	if err != nil {
		return nil, err
	}
	rec.ID, rec.UserID, rec.ActorID = id.AttributionID(rid), id.UserID(user), id.ActorID(actor)
	rec.Method = models.Method(method)
	rec.Provenance.Latitude = floatPtr(lat)
	rec.Provenance.Longitude = floatPtr(lon)
	rec.RegisteredAt = timePtr(registered)
	rec.KYCCompletedAt = timePtr(kyc)
	rec.FirstChatAt = timePtr(firstChat)
	rec.FirstPurchaseAt = timePtr(firstBuy)
	rec.LifetimeRevenue, err = decimal.NewFromString(revenue)
	if err != nil {
		return nil, fmt.Errorf("parse lifetime revenue: %w", err)
	}
	return &rec, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func userKeys(ids []id.UserID) []string {
	out := make([]string, len(ids))
	for i, u := range ids {
		out[i] = u.String()
	}
	return out
}
