package session

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Tokens() Tokens
	Activity() Activity
}

type mngr struct {
	db       *bun.DB
	tokens   Tokens
	activity Activity
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		tokens:   NewTokensRepository(db),
		activity: NewActivityRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	if m.activity == nil {
		return errors.New("repository activity should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Tokens() Tokens {
	return m.tokens
}

func (m mngr) Activity() Activity {
	return m.activity
}
