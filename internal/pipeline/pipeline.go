// Package pipeline orchestrates one paid lookup end to end: moderation gates,
// debit, validation, external invocation, and the compensating refund on any
// post-debit failure.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"infobroker/internal/catalog"
	"infobroker/internal/history"
	"infobroker/internal/ledger"
	"infobroker/internal/moderation"
	"infobroker/internal/platform/metrics"
	"infobroker/internal/ports"
	"infobroker/pkg/audit"
	dErrors "infobroker/pkg/domainerrors"
)

var tracer = otel.Tracer("infobroker/pipeline")

// Status classifies how an execution ended. Every non-Success status after
// the debit step implies the debit was refunded.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusNoMatch             Status = "no_match"
	StatusBanned              Status = "banned"
	StatusProtected           Status = "protected"
	StatusInsufficientCredits Status = "insufficient_credits"
	StatusInvalidFormat       Status = "invalid_format"
	StatusTimeout             Status = "timeout"
	StatusServiceError        Status = "service_error"
)

// Outcome is the structured result handed to the rendering layer. The
// pipeline never produces chat text.
type Outcome struct {
	Status  Status
	Service catalog.Service
	Query   string
	Result  json.RawMessage
	Balance int64
}

// Invoker performs the external call. Satisfied by lookup.Client.
type Invoker interface {
	Invoke(ctx context.Context, svc catalog.Service, query string) (json.RawMessage, error)
}

type Pipeline struct {
	catalog    *catalog.Catalog
	moderation *moderation.Service
	ledger     *ledger.Service
	history    ports.HistoryStore
	users      ports.UserStore
	invoker    Invoker
	metrics    *metrics.Metrics
	publisher  audit.Publisher
	logger     *slog.Logger
}

func New(
	cat *catalog.Catalog,
	mod *moderation.Service,
	led *ledger.Service,
	hist ports.HistoryStore,
	users ports.UserStore,
	invoker Invoker,
	m *metrics.Metrics,
	publisher audit.Publisher,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		catalog:    cat,
		moderation: mod,
		ledger:     led,
		history:    hist,
		users:      users,
		invoker:    invoker,
		metrics:    m,
		publisher:  publisher,
		logger:     logger,
	}
}

// Execute runs one lookup for the user. serviceKey is an explicit hint from a
// pending prompt; when empty the classifier picks the service from the text.
// The returned error is reserved for infrastructure failures; every business
// refusal is a Status.
func (p *Pipeline) Execute(ctx context.Context, userID int64, serviceKey, text string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "pipeline.execute")
	defer span.End()

	outcome, err := p.execute(ctx, userID, serviceKey, text)
	if err != nil {
		span.RecordError(err)
		return outcome, err
	}
	span.SetAttributes(
		attribute.String("lookup.service", outcome.Service.Key),
		attribute.String("lookup.status", string(outcome.Status)),
	)
	service := outcome.Service.Key
	if service == "" {
		service = "none"
	}
	p.metrics.LookupsTotal.WithLabelValues(service, string(outcome.Status)).Inc()
	return outcome, nil
}

func (p *Pipeline) execute(ctx context.Context, userID int64, serviceKey, text string) (Outcome, error) {
	banned, err := p.moderation.IsBanned(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	if banned {
		return Outcome{Status: StatusBanned}, nil
	}

	var svc catalog.Service
	if serviceKey != "" {
		svc, err = p.catalog.Lookup(serviceKey)
		if err != nil {
			return Outcome{}, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown lookup service")
		}
	} else {
		var ok bool
		svc, ok = p.catalog.Match(text)
		if !ok {
			return Outcome{Status: StatusNoMatch}, nil
		}
	}

	query := svc.Normalize(text)

	// Protection is checked before any money moves; a protected value costs
	// the caller nothing and reveals nothing.
	protected, err := p.moderation.IsProtected(ctx, svc.Key, query)
	if err != nil {
		return Outcome{}, err
	}
	if protected {
		p.publisher.Emit(ctx, audit.Event{Action: audit.ActionLookupDenied, UserID: userID, ServiceKey: svc.Key, Reason: "protected"})
		return Outcome{Status: StatusProtected, Service: svc, Query: query}, nil
	}

	if err := p.ledger.TryDebit(ctx, userID, svc.Cost); err != nil {
		if dErrors.Is(err, dErrors.CodeConflict) {
			balance, berr := p.ledger.Balance(ctx, userID)
			if berr != nil {
				return Outcome{}, berr
			}
			return Outcome{Status: StatusInsufficientCredits, Service: svc, Query: query, Balance: balance}, nil
		}
		return Outcome{}, err
	}

	// Validation runs after the debit; a malformed query is refunded rather
	// than rejected up front.
	if !svc.Valid(query) {
		if err := p.ledger.Refund(ctx, userID, svc.Cost, ledger.ReasonInvalidFormat); err != nil {
			return Outcome{}, err
		}
		return p.settled(ctx, userID, svc, query, StatusInvalidFormat)
	}

	result, err := p.invoker.Invoke(ctx, svc, query)
	if err != nil {
		reason := ledger.ReasonServiceError
		status := StatusServiceError
		if dErrors.Is(err, dErrors.CodeTimeout) {
			reason = ledger.ReasonServiceTimeout
			status = StatusTimeout
		}
		p.logger.WarnContext(ctx, "lookup failed", "user_id", userID, "service", svc.Key, "status", status, "error", err)
		if rerr := p.ledger.Refund(ctx, userID, svc.Cost, reason); rerr != nil {
			return Outcome{}, rerr
		}
		return p.settled(ctx, userID, svc, query, status)
	}

	if err := p.history.Append(ctx, history.Entry{UserID: userID, ServiceKey: svc.Key, Query: query, At: time.Now()}); err != nil {
		p.logger.ErrorContext(ctx, "append lookup history", "user_id", userID, "error", err)
	}
	if err := p.users.IncrementLookups(ctx, userID); err != nil {
		p.logger.ErrorContext(ctx, "increment lookup counter", "user_id", userID, "error", err)
	}
	p.publisher.Emit(ctx, audit.Event{Action: audit.ActionLookupPerformed, UserID: userID, ServiceKey: svc.Key, Amount: svc.Cost})

	balance, err := p.ledger.Balance(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusSuccess, Service: svc, Query: query, Result: result, Balance: balance}, nil
}

// settled reports a refunded outcome with the post-refund balance.
func (p *Pipeline) settled(ctx context.Context, userID int64, svc catalog.Service, query string, status Status) (Outcome, error) {
	balance, err := p.ledger.Balance(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: status, Service: svc, Query: query, Balance: balance}, nil
}
