package jobs

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/codfleet/api/internal/services"
)

// LogEventPublisher writes order events to the structured log. It backs local development where
// no broker is configured.
type LogEventPublisher struct {
	logger *zap.Logger
}

func NewLogEventPublisher(logger *zap.Logger) (*LogEventPublisher, error) {
	if logger == nil {
		return nil, errors.New("log event publisher: logger is required")
	}
	return &LogEventPublisher{logger: logger.Named("events")}, nil
}

func (p *LogEventPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	p.logger.Info("order event",
		zap.String("eventId", event.ID),
		zap.String("eventType", event.Type),
		zap.String("orderId", event.OrderID),
		zap.String("invoiceNumber", event.InvoiceNumber),
		zap.String("status", event.Status),
		zap.Strings("recipients", event.Recipients),
		zap.Time("occurredAt", event.OccurredAt),
	)
	return nil
}
