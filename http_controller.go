package registry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController exposes the registry over a JSON API.
type HTTPController struct {
	auth         Authenticator
	farmers      *FarmersService
	crops        *CropsService
	gate         *RouteGate
	contextKey   string
	Logger       Logger
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPControllerOption configures an HTTPController.
type HTTPControllerOption func(*HTTPController)

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

func NewHTTPController(auth Authenticator, farmers *FarmersService, crops *CropsService, gate *RouteGate, cfg Config, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		auth:       auth,
		farmers:    farmers,
		crops:      crops,
		gate:       gate,
		contextKey: cfg.GetContextKey(),
		Logger:     defLogger{},
	}

	c.ErrorHandler = gate.ErrorHandler

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RegisterRoutes mounts the API. Static segments are registered before
// parameterized ones.
func (a *HTTPController) RegisterRoutes(app RouteRegistrar) {
	protected := a.gate.ProtectedRoute()
	admin := a.gate.AdminRoute()

	app.Post("/auth/login", a.Login)
	app.Post("/auth/register", a.Register)
	app.Get("/auth/me", a.Me, protected)
	app.Post("/auth/change-password", a.ChangePassword, protected)

	app.Get("/farmers/stats", a.FarmerStats, admin)
	app.Get("/farmers", a.ListFarmers, protected)
	app.Post("/farmers", a.CreateFarmer, admin)
	app.Get("/farmers/:id", a.GetFarmer, protected)
	app.Put("/farmers/:id", a.UpdateFarmer, protected)
	app.Delete("/farmers/:id", a.DeleteFarmer, admin)

	app.Get("/crops/stats", a.CropStats, protected)
	app.Get("/crops", a.ListCrops, protected)
	app.Post("/crops", a.CreateCrop, protected)
	app.Get("/crops/:id", a.GetCrop, protected)
	app.Put("/crops/:id", a.UpdateCrop, protected)
	app.Delete("/crops/:id", a.DeleteCrop, protected)
}

// LoginPayload is the credential payload
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *HTTPController) Login(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, err)
	}

	result, err := a.auth.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, result)
}

// RegisterPayload is the registration payload. DateOfBirth accepts a
// plain date or a full timestamp.
type RegisterPayload struct {
	Email        string  `form:"email" json:"email"`
	Password     string  `form:"password" json:"password"`
	FirstName    string  `form:"first_name" json:"first_name"`
	LastName     string  `form:"last_name" json:"last_name"`
	Phone        string  `form:"phone" json:"phone"`
	Address      string  `form:"address" json:"address"`
	DateOfBirth  string  `form:"date_of_birth" json:"date_of_birth"`
	NationalID   string  `form:"national_id" json:"national_id"`
	FarmSize     float64 `form:"farm_size" json:"farm_size"`
	FarmLocation string  `form:"farm_location" json:"farm_location"`
}

// ToMessage converts the payload into a RegisterMessage.
func (r RegisterPayload) ToMessage() (RegisterMessage, error) {
	msg := RegisterMessage{
		Email:        r.Email,
		Password:     r.Password,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Phone:        r.Phone,
		Address:      r.Address,
		NationalID:   r.NationalID,
		FarmSize:     r.FarmSize,
		FarmLocation: r.FarmLocation,
	}

	if r.DateOfBirth != "" {
		dob, err := parseDate(r.DateOfBirth)
		if err != nil {
			return msg, goerrors.New("invalid date_of_birth", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest)
		}
		msg.DateOfBirth = &dob
	}

	return msg, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (a *HTTPController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	msg, err := payload.ToMessage()
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	result, err := a.auth.Register(ctx.Context(), msg)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, result)
}

func (a *HTTPController) Me(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"id":        claims.AccountID(),
		"email":     claims.Email(),
		"role":      claims.Role(),
		"farmer_id": claims.FarmerID(),
	})
}

// ChangePasswordPayload carries the current and the replacement
// password.
type ChangePasswordPayload struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

func (a *HTTPController) ChangePassword(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := new(ChangePasswordPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := a.auth.ChangePassword(ctx.Context(), claims.AccountID(), payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "password updated",
	})
}

func (a *HTTPController) ListFarmers(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	records, err := a.farmers.List(ctx.Context(), claims)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, records)
}

func (a *HTTPController) CreateFarmer(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := new(RegisterPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	msg, err := payload.ToMessage()
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	record, err := a.farmers.Create(ctx.Context(), claims, msg)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, record)
}

func (a *HTTPController) GetFarmer(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	id, err := a.paramID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	record, err := a.farmers.Get(ctx.Context(), claims, id)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

func (a *HTTPController) UpdateFarmer(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	id, err := a.paramID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(FarmerUpdate)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	record, err := a.farmers.Update(ctx.Context(), claims, id, *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

func (a *HTTPController) DeleteFarmer(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	id, err := a.paramID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.farmers.Delete(ctx.Context(), claims, id); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "deleted",
	})
}

func (a *HTTPController) FarmerStats(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	stats, err := a.farmers.Stats(ctx.Context(), claims)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, stats)
}

func (a *HTTPController) ListCrops(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	records, err := a.crops.List(ctx.Context(), claims)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, records)
}

func (a *HTTPController) CreateCrop(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := new(CropInput)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	record, err := a.crops.Create(ctx.Context(), claims, *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, record)
}

func (a *HTTPController) GetCrop(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	id, err := a.paramID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	record, err := a.crops.Get(ctx.Context(), claims, id)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

func (a *HTTPController) UpdateCrop(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	id, err := a.paramID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(CropUpdate)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	record, err := a.crops.Update(ctx.Context(), claims, id, *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

func (a *HTTPController) DeleteCrop(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	id, err := a.paramID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.crops.Delete(ctx.Context(), claims, id); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "deleted",
	})
}

func (a *HTTPController) CropStats(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.contextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	stats, err := a.crops.Stats(ctx.Context(), claims)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, stats)
}

func (a *HTTPController) paramID(ctx router.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, goerrors.New("invalid id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return id, nil
}

func (a *HTTPController) badRequest(ctx router.Context, err error) error {
	return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request payload").
		WithCode(goerrors.CodeBadRequest))
}
