package session

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens is the repository surface for persisted token entries.
type Tokens interface {
	repository.Repository[*TokenRecord]

	Put(ctx context.Context, key, value string) error
	PutTx(ctx context.Context, tx bun.IDB, key, value string) error
	GetByKey(ctx context.Context, key string) (*TokenRecord, error)
	DeleteByKey(ctx context.Context, key string) error
}

type tokens struct {
	repository.Repository[*TokenRecord]
	db *bun.DB
}

var _ Tokens = (*tokens)(nil)

// NewTokensRepository builds the bun-backed token repository.
func NewTokensRepository(db *bun.DB) Tokens {
	repo := repository.NewRepository[*TokenRecord](db, repository.ModelHandlers[*TokenRecord]{
		NewRecord: func() *TokenRecord { return &TokenRecord{} },
		GetID: func(r *TokenRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *TokenRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "key"
		},
	})

	return &tokens{
		Repository: repo,
		db:         db,
	}
}

func (t *tokens) Put(ctx context.Context, key, value string) error {
	return t.PutTx(ctx, t.db, key, value)
}

func (t *tokens) PutTx(ctx context.Context, tx bun.IDB, key, value string) error {
	record := &TokenRecord{
		ID:    uuid.New(),
		Key:   key,
		Value: value,
	}

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = CURRENT_TIMESTAMP").
		Exec(ctx)

	return err
}

func (t *tokens) GetByKey(ctx context.Context, key string) (*TokenRecord, error) {
	record := &TokenRecord{}
	err := t.db.NewSelect().
		Model(record).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"key": key})
		}
		return nil, err
	}

	return record, nil
}

func (t *tokens) DeleteByKey(ctx context.Context, key string) error {
	_, err := t.db.NewDelete().
		Model((*TokenRecord)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	return err
}

// BunTokenBackend adapts the Tokens repository to the TokenBackend
// interface used by DualKeyStore.
type BunTokenBackend struct {
	repo Tokens
}

// NewBunTokenBackend wraps a Tokens repository.
func NewBunTokenBackend(repo Tokens) *BunTokenBackend {
	return &BunTokenBackend{repo: repo}
}

func (b *BunTokenBackend) Put(ctx context.Context, key, value string) error {
	return b.repo.Put(ctx, key, value)
}

func (b *BunTokenBackend) Get(ctx context.Context, key string) (string, error) {
	record, err := b.repo.GetByKey(ctx, key)
	if err != nil {
		return "", err
	}
	return record.Value, nil
}

func (b *BunTokenBackend) Delete(ctx context.Context, key string) error {
	return b.repo.DeleteByKey(ctx, key)
}

var _ TokenBackend = (*BunTokenBackend)(nil)
