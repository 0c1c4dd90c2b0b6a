package registry

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// AuthResult is the outcome of a successful login or registration: a
// signed session token plus the redacted account view.
type AuthResult struct {
	Token    string         `json:"token"`
	Identity PublicIdentity `json:"identity"`
}

// RegisterMessage carries the account credentials and the farmer
// profile captured in a single registration request.
type RegisterMessage struct {
	Email        string     `json:"email"`
	Password     string     `json:"password"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	NationalID   string     `json:"national_id"`
	FarmSize     float64    `json:"farm_size"`
	FarmLocation string     `json:"farm_location"`
}

func (m RegisterMessage) Type() string { return "user.register" }

// Validate checks the message before any database work happens.
func (m RegisterMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&m.FirstName, validation.Required),
		validation.Field(&m.LastName, validation.Required),
		validation.Field(&m.FarmSize, validation.Min(0.0)),
	)
}

// Auther implements Authenticator on top of the repository manager
// and the token service.
type Auther struct {
	repo            RepositoryManager
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
	tokenValidator  TokenValidator
	activitySink    ActivitySink
	phoneRegion     string
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		repo:            repo,
		signingKey:      []byte(opts.GetSigningKey()),
		tokenExpiration: opts.GetTokenExpiration(),
		issuer:          opts.GetIssuer(),
		audience:        opts.GetAudience(),
		logger:          defLogger{},
		tokenService:    tokenService,
		activitySink:    noopActivitySink{},
		phoneRegion:     "US",
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithPhoneRegion sets the default region used to parse national
// phone numbers during registration.
func (s *Auther) WithPhoneRegion(region string) *Auther {
	if region != "" {
		s.phoneRegion = region
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

var _ Authenticator = (*Auther)(nil)

// Login verifies the credentials and issues a session token. Unknown
// emails and wrong passwords come back as the same credential error.
func (s *Auther) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Debug("login rejected, unknown email")
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"email": normalizeEmail(email),
			})
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "login lookup failed")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Debug("login rejected, password mismatch", "user", user.ID.String())
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), map[string]any{
			"email": user.Email,
		})
		return nil, ErrInvalidCredentials
	}

	result, err := s.issueFor(user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return result, nil
}

// Register creates the account and its farmer profile in one
// transaction, then issues a session token for the new account.
func (s *Auther) Register(ctx context.Context, msg RegisterMessage) (*AuthResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest)
	}

	phone, err := normalizePhone(msg.Phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Users().GetByEmail(ctx, msg.Email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "registration lookup failed")
	}

	hash, err := HashPassword(msg.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        msg.Email,
		PasswordHash: hash,
		Role:         RoleFarmer,
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}
		user = created

		farmer := &Farmer{
			UserID:       user.ID,
			FirstName:    msg.FirstName,
			LastName:     msg.LastName,
			Phone:        phone,
			Address:      msg.Address,
			DateOfBirth:  msg.DateOfBirth,
			NationalID:   msg.NationalID,
			FarmSize:     msg.FarmSize,
			FarmLocation: msg.FarmLocation,
		}

		if farmer, err = s.repo.Farmers().CreateTx(ctx, tx, farmer); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create farmer profile")
		}

		user.Farmer = farmer
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "registration transaction failed")
	}

	s.emitAuthEvent(ctx, ActivityEventUserRegistered, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return s.issueFor(user)
}

// ChangePassword verifies the current password and replaces the hash.
// The new password is hashed exactly once.
func (s *Auther) ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.repo.Users().GetWithProfile(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "change password lookup failed")
	}

	if err := ComparePasswordAndHash(currentPassword, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.repo.Users().ResetPassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordChanged, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), nil)

	return nil
}

// CreateAdmin provisions an admin account with a deterministic id
// derived from the email, so repeated bootstraps converge on the same
// record. An existing admin with that email is returned as is.
func (s *Auther) CreateAdmin(ctx context.Context, email, password string) (*User, error) {
	existing, err := s.repo.Users().GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != RoleAdmin {
			return nil, ErrEmailAlreadyExists
		}
		return existing, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "admin lookup failed")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
	}

	if id, err := hashid.NewUUID(normalizeEmail(email)); err == nil {
		user.ID = id
	}

	created, err := s.repo.Users().Register(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create admin")
	}

	s.emitAuthEvent(ctx, ActivityEventAdminCreated, ActorRef{Type: "system"}, created.ID.String(), map[string]any{
		"email": created.Email,
	})

	return created, nil
}

// AuthenticateToken resolves a bearer token into verified claims.
func (s *Auther) AuthenticateToken(token string) (AuthClaims, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(token)
	if err != nil {
		s.logger.Debug("token validation failed", "error", err)
		return nil, err
	}

	return claims, nil
}

// DeleteAccount removes the account with its profile and crop records
// in one transaction.
func (s *Auther) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().DeleteCascadeTx(ctx, tx, accountID)
	})

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account delete failed")
	}

	s.emitAuthEvent(ctx, ActivityEventAccountDeleted, ActorRef{Type: "system"}, accountID.String(), nil)

	return nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) issueFor(user *User) (*AuthResult, error) {
	claims := ClaimsForUser(user)

	token, err := s.tokenService.Issue(claims)
	if err != nil {
		s.logger.Error("token issuance failed", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not issue token")
	}

	return &AuthResult{
		Token:    token,
		Identity: user.PublicView(),
	}, nil
}

func normalizePhone(raw, region string) (string, error) {
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
