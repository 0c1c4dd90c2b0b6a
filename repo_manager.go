package registry

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
	Users() Users
	Farmers() Farmers
	Crops() Crops
}

type mngr struct {
	db      *bun.DB
	users   Users
	farmers Farmers
	crops   Crops
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:      db,
		users:   NewUsersRepository(db),
		farmers: NewFarmersRepository(db),
		crops:   NewCropsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.farmers == nil {
		return errors.New("repository farmers should be initialized")
	}

	if m.crops == nil {
		return errors.New("repository crops should be initialized")
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

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Farmers() Farmers {
	return m.farmers
}

func (m mngr) Crops() Crops {
	return m.crops
}
