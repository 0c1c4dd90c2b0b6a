package registry

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Farmers is the farmer profile repository. Listing and aggregate
// methods take an optional owner scope: nil means every profile, a
// profile id restricts the result to that single owner.
type Farmers interface {
	Create(ctx context.Context, record *Farmer) (*Farmer, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Farmer) (*Farmer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Farmer, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Farmer, error)
	List(ctx context.Context, scope *uuid.UUID) ([]*Farmer, error)
	Update(ctx context.Context, record *Farmer) (*Farmer, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *Farmer) (*Farmer, error)
	Count(ctx context.Context) (int, error)
	AverageFarmSize(ctx context.Context) (float64, error)
}

type farmers struct {
	db *bun.DB
}

var _ Farmers = (*farmers)(nil)

func NewFarmersRepository(db *bun.DB) Farmers {
	return &farmers{db: db}
}

func (r *farmers) Create(ctx context.Context, record *Farmer) (*Farmer, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *farmers) CreateTx(ctx context.Context, tx bun.IDB, record *Farmer) (*Farmer, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *farmers) GetByID(ctx context.Context, id uuid.UUID) (*Farmer, error) {
	record := &Farmer{}
	err := r.db.NewSelect().
		Model(record).
		Relation("Crops").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, r.wrapNotFound(err, map[string]any{"id": id.String()})
	}

	return record, nil
}

func (r *farmers) GetByUserID(ctx context.Context, userID uuid.UUID) (*Farmer, error) {
	record := &Farmer{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, r.wrapNotFound(err, map[string]any{"user_id": userID.String()})
	}

	return record, nil
}

func (r *farmers) List(ctx context.Context, scope *uuid.UUID) ([]*Farmer, error) {
	records := []*Farmer{}
	q := r.db.NewSelect().
		Model(&records).
		Relation("Crops").
		Order("frm.created_at ASC")

	if scope != nil {
		q.Where("?TableAlias.id = ?", *scope)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *farmers) Update(ctx context.Context, record *Farmer) (*Farmer, error) {
	return r.UpdateTx(ctx, r.db, record)
}

func (r *farmers) UpdateTx(ctx context.Context, tx bun.IDB, record *Farmer) (*Farmer, error) {
	res, err := tx.NewUpdate().
		Model(record).
		Column("first_name", "last_name", "phone", "address", "date_of_birth", "national_id", "farm_size", "farm_location").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("?TableAlias.id = ?", record.ID).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": record.ID.String()})
	}

	return record, nil
}

func (r *farmers) Count(ctx context.Context) (int, error) {
	return r.db.NewSelect().Model((*Farmer)(nil)).Count(ctx)
}

func (r *farmers) AverageFarmSize(ctx context.Context) (float64, error) {
	var avg float64
	err := r.db.NewSelect().
		Model((*Farmer)(nil)).
		ColumnExpr("COALESCE(AVG(farm_size), 0)").
		Scan(ctx, &avg)
	if err != nil {
		return 0, err
	}

	return avg, nil
}

func (r *farmers) wrapNotFound(err error, meta map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return repository.NewRecordNotFound().WithMetadata(meta)
	}
	return err
}
