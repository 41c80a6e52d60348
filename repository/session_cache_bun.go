package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-stockroom"
	"github.com/uptrace/bun"
)

// SessionCacheModel is the Bun model for cached sessions.
type SessionCacheModel struct {
	bun.BaseModel `bun:"table:session_cache"`

	Namespace    string    `bun:"namespace,pk"`
	Username     string    `bun:"username,notnull"`
	IDToken      string    `bun:"id_token"`
	AccessToken  string    `bun:"access_token"`
	RefreshToken string    `bun:"refresh_token"`
	ExpiresAt    time.Time `bun:"expires_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// BunSessionCache implements stockroom.SessionCache on a SQL table. Each
// namespace (typically the app client ID) holds at most one session.
type BunSessionCache struct {
	db        *bun.DB
	namespace string
}

var _ stockroom.SessionCache = (*BunSessionCache)(nil)

// NewBunSessionCache creates a new cache for namespace.
func NewBunSessionCache(db *bun.DB, namespace string) *BunSessionCache {
	return &BunSessionCache{db: db, namespace: namespace}
}

// EnsureSchema creates the session_cache table when missing.
func (r *BunSessionCache) EnsureSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*SessionCacheModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Load implements stockroom.SessionCache.
func (r *BunSessionCache) Load(ctx context.Context) (*stockroom.CachedSession, error) {
	var model SessionCacheModel
	err := r.db.NewSelect().
		Model(&model).
		Where("namespace = ?", r.namespace).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stockroom.ErrNoCachedSession
		}
		return nil, err
	}
	return toCachedSession(&model), nil
}

// Save implements stockroom.SessionCache.
func (r *BunSessionCache) Save(ctx context.Context, session *stockroom.CachedSession) error {
	if session == nil {
		return r.Clear(ctx)
	}

	model := r.fromCachedSession(session)
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = time.Now()
	}

	_, err := r.db.NewInsert().
		Model(model).
		On("CONFLICT (namespace) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("id_token = EXCLUDED.id_token").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// Clear implements stockroom.SessionCache.
func (r *BunSessionCache) Clear(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*SessionCacheModel)(nil)).
		Where("namespace = ?", r.namespace).
		Exec(ctx)
	return err
}

func toCachedSession(m *SessionCacheModel) *stockroom.CachedSession {
	return &stockroom.CachedSession{
		Username: m.Username,
		Tokens: stockroom.Tokens{
			IDToken:      m.IDToken,
			AccessToken:  m.AccessToken,
			RefreshToken: m.RefreshToken,
			ExpiresAt:    m.ExpiresAt,
		},
		UpdatedAt: m.UpdatedAt,
	}
}

func (r *BunSessionCache) fromCachedSession(s *stockroom.CachedSession) *SessionCacheModel {
	return &SessionCacheModel{
		Namespace:    r.namespace,
		Username:     s.Username,
		IDToken:      s.Tokens.IDToken,
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		ExpiresAt:    s.Tokens.ExpiresAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
