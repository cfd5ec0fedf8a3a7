package kafka

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"library/internal/app/payments"
	"library/internal/domain"
	"library/internal/domain/event"
	kafka_infra "library/internal/infrastructure/kafka"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CheckoutEventMessageHandler reconciles payments announced by the provider's
// webhook relay. Malformed events and unknown sessions are acknowledged and dropped.
func CheckoutEventMessageHandler(paymentService payments.PaymentService, logger *zap.Logger) kafka_infra.MessageHandler {
	logger = logger.With(zap.String("component", "checkout_event_consumer"))

	return func(ctx context.Context, msg kafka.Message) error {
		var evt event.CheckoutSessionEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("Failed to unmarshal checkout session event",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		switch evt.Type {
		case event.CheckoutSessionCompleted, event.CheckoutSessionExpired:
		default:
			logger.Debug("Ignoring checkout event", zap.String("type", evt.Type), zap.String("event_id", evt.ID))
			return nil
		}

		res, err := paymentService.ReconcileSession(ctx, evt.SessionID)
		if err != nil {
			var verr *domain.ValidationError
			if errors.Is(err, domain.ErrPaymentNotFound) || errors.As(err, &verr) {
				logger.Warn("Checkout event does not match a payment",
					zap.String("session_id", evt.SessionID),
					zap.Error(err))
				return nil
			}
			return fmt.Errorf("failed to reconcile session %s: %w", evt.SessionID, err)
		}

		logger.Info("Checkout event processed",
			zap.String("event_id", evt.ID),
			zap.String("session_id", evt.SessionID),
			zap.String("payment_status", string(res.Payment.Status)),
			zap.Bool("settled", res.Settled))
		return nil
	}
}
