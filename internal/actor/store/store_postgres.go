package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, p models.Profile) error {
	var account any
	if !p.AccountUserID.IsNil() {
		account = uuid.UUID(p.AccountUserID)
	}
	var code any
	if p.ReferralCode != "" {
		code = p.ReferralCode
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actor_profiles (actor_id, account_user_id, referral_code, tier, region, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (actor_id) DO UPDATE SET
			account_user_id = EXCLUDED.account_user_id,
			referral_code = EXCLUDED.referral_code,
			tier = EXCLUDED.tier,
			region = EXCLUDED.region,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(p.ActorID), account, code, string(p.Tier), p.Region, p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("upsert actor profile: %w", err)
	}
	return nil
}

const selectProfile = `SELECT actor_id, account_user_id, referral_code, tier, region, updated_at FROM actor_profiles`

func (s *PostgresStore) Get(ctx context.Context, actorID id.ActorID) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, selectProfile+` WHERE actor_id = $1`, uuid.UUID(actorID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get actor profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByReferralCode(ctx context.Context, code string) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, selectProfile+` WHERE referral_code = $1`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find actor by referral code: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) AccountUsers(ctx context.Context, actorIDs []id.ActorID) (map[id.ActorID]id.UserID, error) {
	out := make(map[id.ActorID]id.UserID, len(actorIDs))
	if len(actorIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(actorIDs))
	for i, a := range actorIDs {
		keys[i] = a.String()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT actor_id, account_user_id FROM actor_profiles
		WHERE actor_id = ANY($1::uuid[]) AND account_user_id IS NOT NULL
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("query account users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var actor, user uuid.UUID
		if err := rows.Scan(&actor, &user); err != nil {
			return nil, fmt.Errorf("scan account user: %w", err)
		}
		out[id.ActorID(actor)] = id.UserID(user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account users: %w", err)
	}
	return out, nil
}

type profileRow interface {
	Scan(dest ...any) error
}

func scanProfile(row profileRow) (*models.Profile, error) {
	var (
		p       models.Profile
		actor   uuid.UUID
		account uuid.NullUUID
		code    sql.NullString
		tier    string
	)
	if err := row.Scan(&actor, &account, &code, &tier, &p.Region, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ActorID = id.ActorID(actor)
	if account.Valid {
		p.AccountUserID = id.UserID(account.UUID)
	}
	p.ReferralCode = code.String
	p.Tier = models.Tier(tier)
	return &p, nil
}
