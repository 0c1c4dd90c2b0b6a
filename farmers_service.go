package registry

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// FarmerUpdate is a partial profile update: nil fields keep their
// stored value. The owning account can never change.
type FarmerUpdate struct {
	FirstName    *string    `json:"first_name"`
	LastName     *string    `json:"last_name"`
	Phone        *string    `json:"phone"`
	Address      *string    `json:"address"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	NationalID   *string    `json:"national_id"`
	FarmSize     *float64   `json:"farm_size"`
	FarmLocation *string    `json:"farm_location"`
}

func (m FarmerUpdate) Validate() error {
	if m.FirstName != nil && *m.FirstName == "" {
		return goerrors.New("first_name must not be empty", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if m.LastName != nil && *m.LastName == "" {
		return goerrors.New("last_name must not be empty", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if m.FarmSize != nil && *m.FarmSize < 0 {
		return goerrors.New("farm_size must not be negative", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	return nil
}

// FarmerStats is the registry wide profile aggregate.
type FarmerStats struct {
	Total           int               `json:"total"`
	TotalCrops      int               `json:"total_crops"`
	AverageFarmSize float64           `json:"average_farm_size"`
	CropsPerFarmer  []FarmerCropCount `json:"crops_per_farmer"`
}

// FarmersService runs every profile operation through the access
// policy before touching the repository.
type FarmersService struct {
	repo        RepositoryManager
	logger      Logger
	phoneRegion string
}

// FarmersServiceOption configures a FarmersService.
type FarmersServiceOption func(*FarmersService)

// WithFarmersLogger overrides the service logger.
func WithFarmersLogger(logger Logger) FarmersServiceOption {
	return func(s *FarmersService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFarmersPhoneRegion sets the default region used to parse
// national phone numbers on profile updates.
func WithFarmersPhoneRegion(region string) FarmersServiceOption {
	return func(s *FarmersService) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

func NewFarmersService(repo RepositoryManager, opts ...FarmersServiceOption) *FarmersService {
	s := &FarmersService{
		repo:        repo,
		logger:      defLogger{},
		phoneRegion: "US",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create provisions a farmer account and profile in one transaction,
// on behalf of the given email and password. Only admins may enroll
// other farmers; self-service signup goes through the authenticator.
func (s *FarmersService) Create(ctx context.Context, claims AuthClaims, msg RegisterMessage) (*Farmer, error) {
	if err := requireRoles(claims, RoleAdmin); err != nil {
		return nil, err
	}

	if err := msg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid farmer payload").
			WithCode(goerrors.CodeBadRequest)
	}

	phone, err := normalizePhone(msg.Phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Users().GetByEmail(ctx, msg.Email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "farmer lookup failed")
	}

	hash, err := HashPassword(msg.Password)
	if err != nil {
		return nil, err
	}

	var profile *Farmer
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := s.repo.Users().RegisterTx(ctx, tx, &User{
			Email:        msg.Email,
			PasswordHash: hash,
			Role:         RoleFarmer,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		profile, err = s.repo.Farmers().CreateTx(ctx, tx, &Farmer{
			UserID:       user.ID,
			FirstName:    msg.FirstName,
			LastName:     msg.LastName,
			Phone:        phone,
			Address:      msg.Address,
			DateOfBirth:  msg.DateOfBirth,
			NationalID:   msg.NationalID,
			FarmSize:     msg.FarmSize,
			FarmLocation: msg.FarmLocation,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create farmer profile")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "farmer enrollment failed")
	}

	s.logger.Info("farmer enrolled", "farmer", profile.ID.String(), "by", claims.Subject())

	return profile, nil
}

// List returns the profiles visible to the caller: every profile for
// admins, only their own for farmers.
func (s *FarmersService) List(ctx context.Context, claims AuthClaims) ([]*Farmer, error) {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return nil, err
	}

	records, err := s.repo.Farmers().List(ctx, OwnerScope(claims))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not list farmers")
	}

	return records, nil
}

// Get returns one profile. Existence is reported before ownership is
// checked.
func (s *FarmersService) Get(ctx context.Context, claims AuthClaims, id uuid.UUID) (*Farmer, error) {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return nil, err
	}

	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := authorizeOwner(claims, record.ID); err != nil {
		return nil, err
	}

	return record, nil
}

// Update applies a partial update to a profile the caller owns.
func (s *FarmersService) Update(ctx context.Context, claims AuthClaims, id uuid.UUID, input FarmerUpdate) (*Farmer, error) {
	if err := requireRoles(claims, RoleAdmin, RoleFarmer); err != nil {
		return nil, err
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := authorizeOwner(claims, record.ID); err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		record.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		record.LastName = *input.LastName
	}
	if input.Phone != nil {
		phone, err := normalizePhone(*input.Phone, s.phoneRegion)
		if err != nil {
			return nil, err
		}
		record.Phone = phone
	}
	if input.Address != nil {
		record.Address = *input.Address
	}
	if input.DateOfBirth != nil {
		record.DateOfBirth = input.DateOfBirth
	}
	if input.NationalID != nil {
		record.NationalID = *input.NationalID
	}
	if input.FarmSize != nil {
		record.FarmSize = *input.FarmSize
	}
	if input.FarmLocation != nil {
		record.FarmLocation = *input.FarmLocation
	}

	updated, err := s.repo.Farmers().Update(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not update farmer")
	}

	return updated, nil
}

// Delete removes a profile together with its account and crop
// records. Only admins may delete profiles.
func (s *FarmersService) Delete(ctx context.Context, claims AuthClaims, id uuid.UUID) error {
	if err := requireRoles(claims, RoleAdmin); err != nil {
		return err
	}

	record, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().DeleteCascadeTx(ctx, tx, record.UserID)
	})

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not delete farmer")
	}

	s.logger.Info("farmer deleted", "farmer", record.ID.String(), "user", record.UserID.String())

	return nil
}

// Stats aggregates every profile in the registry. Admin only.
func (s *FarmersService) Stats(ctx context.Context, claims AuthClaims) (*FarmerStats, error) {
	if err := requireRoles(claims, RoleAdmin); err != nil {
		return nil, err
	}

	total, err := s.repo.Farmers().Count(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not count farmers")
	}

	avg, err := s.repo.Farmers().AverageFarmSize(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not aggregate farm size")
	}

	totalCrops, err := s.repo.Crops().Count(ctx, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not count crops")
	}

	perFarmer, err := s.repo.Crops().CountByFarmer(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not aggregate crops per farmer")
	}

	return &FarmerStats{
		Total:           total,
		TotalCrops:      totalCrops,
		AverageFarmSize: avg,
		CropsPerFarmer:  perFarmer,
	}, nil
}

func (s *FarmersService) fetch(ctx context.Context, id uuid.UUID) (*Farmer, error) {
	record, err := s.repo.Farmers().GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "farmer lookup failed")
	}

	return record, nil
}
