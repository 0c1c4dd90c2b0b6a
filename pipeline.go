package registry

import (
	"context"

	"github.com/goliatone/go-errors"
)

// SessionPipeline runs every protected operation through the same two
// stages: authenticate the caller, then authorize the operation. Each
// stage is terminal on failure, and the stages never blend: an
// identity failure is always reported as unauthenticated, a permission
// failure as forbidden.
type SessionPipeline struct {
	tokens TokenService
	logger Logger
}

// NewSessionPipeline builds a pipeline over the given token service.
func NewSessionPipeline(tokens TokenService, opts ...PipelineOption) *SessionPipeline {
	p := &SessionPipeline{
		tokens: tokens,
		logger: defLogger{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PipelineOption configures a SessionPipeline.
type PipelineOption func(*SessionPipeline)

// WithPipelineLogger overrides the pipeline logger.
func WithPipelineLogger(logger Logger) PipelineOption {
	return func(p *SessionPipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Authenticate resolves the bearer token into verified claims. Any
// rejection, whatever the token verifier reported, collapses into an
// unauthenticated outcome so callers need a single terminal branch.
func (p *SessionPipeline) Authenticate(ctx context.Context, token string) (AuthClaims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := p.tokens.Validate(token)
	if err != nil {
		p.logger.Debug("pipeline: token rejected", "error", err)
		return nil, errors.Wrap(err, errors.CategoryAuth, "authentication required").
			WithTextCode(TextCodeUnauthenticated).
			WithCode(errors.CodeUnauthorized)
	}

	return claims, nil
}

// Authorize evaluates the policy result produced for an already
// authenticated caller. The error it returns is always a forbidden
// outcome, never an unauthenticated one.
func (p *SessionPipeline) Authorize(claims AuthClaims, result PolicyResult) error {
	if result.Allowed() {
		return nil
	}

	err := result.Err()
	if err == nil {
		err = ErrInsufficientRole
	}

	if claims != nil {
		p.logger.Debug("pipeline: access denied",
			"subject", claims.Subject(),
			"role", string(claims.Role()),
		)
	}

	return err
}

// Run executes both stages for a resource-scoped operation and hands
// the verified claims to the callback only when the caller may
// proceed.
func (p *SessionPipeline) Run(ctx context.Context, token string, requiredRoles []Role, fn func(ctx context.Context, claims AuthClaims) error) error {
	claims, err := p.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	if err := p.Authorize(claims, CanAccess(claims, requiredRoles, nil)); err != nil {
		return err
	}

	return fn(WithClaimsContext(ctx, claims), claims)
}
