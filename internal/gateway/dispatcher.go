// Package gateway authenticates, validates, rate limits and routes
// generation requests to an upstream provider.
package gateway

import (
	"context"
	"io"
	"log/slog"

	"github.com/tjfontaine/tutor-gateway/internal/auth"
	"github.com/tjfontaine/tutor-gateway/internal/domain"
	"github.com/tjfontaine/tutor-gateway/internal/policy"
	"github.com/tjfontaine/tutor-gateway/internal/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tjfontaine/tutor-gateway/internal/gateway"

// ChatEnvelope is the normalized success body:
// {"choices":[{"message":{"content":"..."}}]}.
type ChatEnvelope struct {
	Choices []Choice `json:"choices"`
}

// Choice holds one reply message.
type Choice struct {
	Message ChoiceMessage `json:"message"`
}

// ChoiceMessage carries the reply text.
type ChoiceMessage struct {
	Content string `json:"content"`
}

// Envelope wraps a normalized reply.
func Envelope(reply *domain.NormalizedReply) ChatEnvelope {
	return ChatEnvelope{Choices: []Choice{{Message: ChoiceMessage{Content: reply.Content}}}}
}

// Result describes a dispatched request. On failure it carries whatever
// stages completed, so callers can still report the rate decision.
type Result struct {
	Envelope     ChatEnvelope
	Route        domain.Route
	Decision     *policy.Decision
	PromptTokens int
}

// Dispatcher runs the fixed stage order
// authenticate, validate, admit, resolve, invoke, wrap.
// Any failing stage stops the pipeline.
type Dispatcher struct {
	auth      *auth.Authenticator
	validator *Validator
	limiter   policy.Limiter
	rules     router.Rules
	registry  *router.Registry
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewDispatcher wires the gateway stages.
func NewDispatcher(authn *auth.Authenticator, validator *Validator, limiter policy.Limiter, rules router.Rules, registry *router.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		auth:      authn,
		validator: validator,
		limiter:   limiter,
		rules:     rules,
		registry:  registry,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Dispatch serves one generation request. secret is the presented shared
// secret and body the unread request body. Errors are *domain.APIError.
func (d *Dispatcher) Dispatch(ctx context.Context, secret string, body io.Reader) (*Result, error) {
	ctx, span := d.tracer.Start(ctx, "gateway.dispatch")
	defer span.End()

	res := &Result{}
	err := d.dispatch(ctx, secret, body, res)
	if err != nil {
		apiErr := domain.ToAPIError(err)
		span.SetStatus(codes.Error, apiErr.Message)
		span.SetAttributes(attribute.String("error.type", string(apiErr.Type)))
		return res, apiErr
	}
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, secret string, body io.Reader, res *Result) error {
	if err := d.auth.Validate(secret); err != nil {
		return err
	}

	req, promptTokens, err := d.validator.Validate(body)
	res.PromptTokens = promptTokens
	if err != nil {
		return err
	}

	decision := d.limiter.Admit()
	res.Decision = &decision
	if !decision.Allowed {
		return domain.ErrRateLimit("rate limit exceeded, try again later", decision.RetryAfter)
	}

	route := d.rules.Resolve(req.Model)
	res.Route = route
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("provider.kind", string(route.Kind)),
		attribute.String("provider.model", route.Model),
	)

	p, err := d.registry.Provider(route.Kind)
	if err != nil {
		return err
	}

	upstream := *req
	upstream.Model = route.Model

	reply, err := p.Complete(ctx, &upstream)
	if err != nil {
		d.logger.WarnContext(ctx, "upstream call failed",
			slog.String("provider", p.Name()),
			slog.String("model", route.Model),
			slog.String("error", err.Error()),
		)
		return err
	}

	res.Envelope = Envelope(reply)
	return nil
}
