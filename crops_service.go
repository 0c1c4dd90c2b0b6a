package registry

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// CropInput is the payload for creating a crop record. FarmerID is
// only honored for admin callers; a farmer always writes into its own
// profile.
type CropInput struct {
	FarmerID uuid.UUID `json:"farmer_id"`
	Name     string    `json:"name"`
	Type     CropType  `json:"type"`
	Quantity float64   `json:"quantity"`
	Unit     string    `json:"unit"`
}

func (m CropInput) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.Type, validation.Required, validation.By(cropTypeRule)),
		validation.Field(&m.Quantity, validation.Min(0.0)),
	)
}

// CropUpdate is a partial update: nil fields keep their stored value.
// The owning farmer can never change.
type CropUpdate struct {
	Name     *string   `json:"name"`
	Type     *CropType `json:"type"`
	Quantity *float64  `json:"quantity"`
	Unit     *string   `json:"unit"`
}

func (m CropUpdate) Validate() error {
	if m.Type != nil {
		if err := cropTypeRule(*m.Type); err != nil {
			return err
		}
	}

	if m.Quantity != nil && *m.Quantity < 0 {
		return goerrors.New("quantity must not be negative", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	return nil
}

func cropTypeRule(value any) error {
	raw, _ := value.(CropType)
	if !IsValidCropType(raw) {
		return goerrors.New("unknown crop type", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

// CropStats is the aggregate view over a set of crop records.
type CropStats struct {
	Total  int             `json:"total"`
	ByType []CropTypeCount `json:"by_type"`
}

// CropsService runs every crop operation through the access policy
// before touching the repository.
type CropsService struct {
	repo   RepositoryManager
	logger Logger
}

// CropsServiceOption configures a CropsService.
type CropsServiceOption func(*CropsService)

// WithCropsLogger overrides the service logger.
func WithCropsLogger(logger Logger) CropsServiceOption {
	return func(s *CropsService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewCropsService(repo RepositoryManager, opts ...CropsServiceOption) *CropsService {
	s := &CropsService{
		repo:   repo,
		logger: defLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create registers a new crop record. Farmer callers write into their
// own profile whatever owner the payload named; admin callers must
// name an existing profile.
func (s *CropsService) Create(ctx context.Context, claims AuthClaims, input CropInput) (*Crop, error) {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return nil, err
	}

	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid crop payload").
			WithCode(goerrors.CodeBadRequest)
	}

	owner := ForceOwner(claims, input.FarmerID)
	if owner == uuid.Nil {
		return nil, goerrors.New("farmer_id is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if _, err := s.repo.Farmers().GetByID(ctx, owner); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "crop owner lookup failed")
	}

	record := &Crop{
		FarmerID: owner,
		Name:     input.Name,
		Type:     input.Type,
		Quantity: input.Quantity,
		Unit:     input.Unit,
	}

	created, err := s.repo.Crops().Create(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create crop")
	}

	s.logger.Info("crop created", "crop", created.ID.String(), "farmer", owner.String())

	return created, nil
}

// List returns the crop records visible to the caller.
func (s *CropsService) List(ctx context.Context, claims AuthClaims) ([]*Crop, error) {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return nil, err
	}

	records, err := s.repo.Crops().List(ctx, OwnerScope(claims))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not list crops")
	}

	return records, nil
}

// Get returns one crop record. A record that does not exist reports
// not found even to callers who could never have owned it; ownership
// is only checked once the record is known to exist.
func (s *CropsService) Get(ctx context.Context, claims AuthClaims, id uuid.UUID) (*Crop, error) {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return nil, err
	}

	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := authorizeOwner(claims, record.FarmerID); err != nil {
		return nil, err
	}

	return record, nil
}

// Update applies a partial update to a crop record the caller owns.
func (s *CropsService) Update(ctx context.Context, claims AuthClaims, id uuid.UUID, input CropUpdate) (*Crop, error) {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return nil, err
	}

	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid crop payload").
			WithCode(goerrors.CodeBadRequest)
	}

	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := authorizeOwner(claims, record.FarmerID); err != nil {
		return nil, err
	}

	if input.Name != nil {
		record.Name = *input.Name
	}
	if input.Type != nil {
		record.Type = *input.Type
	}
	if input.Quantity != nil {
		record.Quantity = *input.Quantity
	}
	if input.Unit != nil && *input.Unit != "" {
		record.Unit = *input.Unit
	}

	updated, err := s.repo.Crops().Update(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not update crop")
	}

	return updated, nil
}

// Delete removes one crop record the caller owns.
func (s *CropsService) Delete(ctx context.Context, claims AuthClaims, id uuid.UUID) error {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return err
	}

	record, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}

	if err := authorizeOwner(claims, record.FarmerID); err != nil {
		return err
	}

	if err := s.repo.Crops().Delete(ctx, record.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not delete crop")
	}

	s.logger.Info("crop deleted", "crop", record.ID.String())

	return nil
}

// Stats aggregates the crop records visible to the caller.
func (s *CropsService) Stats(ctx context.Context, claims AuthClaims) (*CropStats, error) {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return nil, err
	}

	scope := OwnerScope(claims)

	total, err := s.repo.Crops().Count(ctx, scope)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not count crops")
	}

	byType, err := s.repo.Crops().CountByType(ctx, scope)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not aggregate crops")
	}

	return &CropStats{
		Total:  total,
		ByType: byType,
	}, nil
}

func (s *CropsService) fetch(ctx context.Context, id uuid.UUID) (*Crop, error) {
	record, err := s.repo.Crops().GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "crop lookup failed")
	}

	return record, nil
}
