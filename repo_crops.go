package registry

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CropTypeCount is one bucket of the per-type aggregate.
type CropTypeCount struct {
	Type  CropType `bun:"crop_type" json:"type"`
	Count int      `bun:"total" json:"count"`
}

// FarmerCropCount is one bucket of the per-farmer aggregate.
type FarmerCropCount struct {
	FarmerID uuid.UUID `bun:"farmer_id" json:"farmer_id"`
	Count    int       `bun:"total" json:"count"`
}

// Crops is the crop record repository. Listing and aggregate methods
// take an optional owner scope: nil means every record, a farmer
// profile id restricts the result to that owner.
type Crops interface {
	Create(ctx context.Context, record *Crop) (*Crop, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Crop) (*Crop, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Crop, error)
	List(ctx context.Context, scope *uuid.UUID) ([]*Crop, error)
	Update(ctx context.Context, record *Crop) (*Crop, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, scope *uuid.UUID) (int, error)
	CountByType(ctx context.Context, scope *uuid.UUID) ([]CropTypeCount, error)
	CountByFarmer(ctx context.Context) ([]FarmerCropCount, error)
}

type crops struct {
	db *bun.DB
}

var _ Crops = (*crops)(nil)

func NewCropsRepository(db *bun.DB) Crops {
	return &crops{db: db}
}

func (r *crops) Create(ctx context.Context, record *Crop) (*Crop, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *crops) CreateTx(ctx context.Context, tx bun.IDB, record *Crop) (*Crop, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Unit == "" {
		record.Unit = DefaultCropUnit
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *crops) GetByID(ctx context.Context, id uuid.UUID) (*Crop, error) {
	record := &Crop{}
	err := r.db.NewSelect().
		Model(record).
		Relation("Farmer").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (r *crops) List(ctx context.Context, scope *uuid.UUID) ([]*Crop, error) {
	records := []*Crop{}
	q := r.db.NewSelect().
		Model(&records).
		Order("crp.created_at ASC")

	if scope != nil {
		q.Where("?TableAlias.farmer_id = ?", *scope)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *crops) Update(ctx context.Context, record *Crop) (*Crop, error) {
	res, err := r.db.NewUpdate().
		Model(record).
		Column("name", "crop_type", "quantity", "unit").
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

func (r *crops) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*Crop)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (r *crops) Count(ctx context.Context, scope *uuid.UUID) (int, error) {
	q := r.db.NewSelect().Model((*Crop)(nil))

	if scope != nil {
		q.Where("?TableAlias.farmer_id = ?", *scope)
	}

	return q.Count(ctx)
}

func (r *crops) CountByType(ctx context.Context, scope *uuid.UUID) ([]CropTypeCount, error) {
	buckets := []CropTypeCount{}
	q := r.db.NewSelect().
		Model((*Crop)(nil)).
		ColumnExpr("crop_type").
		ColumnExpr("COUNT(*) AS total").
		Group("crop_type").
		Order("crop_type ASC")

	if scope != nil {
		q.Where("?TableAlias.farmer_id = ?", *scope)
	}

	if err := q.Scan(ctx, &buckets); err != nil {
		return nil, err
	}

	return buckets, nil
}

func (r *crops) CountByFarmer(ctx context.Context) ([]FarmerCropCount, error) {
	buckets := []FarmerCropCount{}
	err := r.db.NewSelect().
		Model((*Crop)(nil)).
		ColumnExpr("farmer_id").
		ColumnExpr("COUNT(*) AS total").
		Group("farmer_id").
		Scan(ctx, &buckets)
	if err != nil {
		return nil, err
	}

	return buckets, nil
}
