package services

import (
	"context"
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"

	"github.com/refwise/refwise_backend/models"
)

// Event type discriminators on the payment events topic.
const (
	eventPaymentSucceeded   = "payment.succeeded"
	eventPaymentRefunded    = "payment.refunded"
	eventPaymentChargedBack = "payment.charged_back"
	eventUserRegistered     = "user.registered"
)

// eventEnvelope wraps every message on the topic.
type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PaymentEventConsumer ingests the same four event types as the webhook
// surface from a Kafka topic, dispatching to the same idempotent services.
// Running both transports at once is safe: duplicate delivery across them
// resolves through the paymentId uniqueness constraint.
type PaymentEventConsumer struct {
	consumer    *kafka.Consumer
	topic       string
	commissions *CommissionService
	adjustments *AdjustmentService
	referralSvc *ReferralService
}

func NewPaymentEventConsumer(bootstrapServers, groupID, topic string, commissions *CommissionService, adjustments *AdjustmentService, referralSvc *ReferralService) (*PaymentEventConsumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": bootstrapServers,
		"group.id":          groupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, err
	}
	if err := consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		consumer.Close()
		return nil, err
	}
	return &PaymentEventConsumer{
		consumer:    consumer,
		topic:       topic,
		commissions: commissions,
		adjustments: adjustments,
		referralSvc: referralSvc,
	}, nil
}

// Run polls the topic until the context is cancelled. Malformed messages
// are logged and skipped; handler errors are logged but do not stop the
// loop, since redelivery of the same event is always safe.
func (c *PaymentEventConsumer) Run(ctx context.Context) {
	log.WithField("topic", c.topic).Info("Payment event consumer started")
	defer c.consumer.Close()

	for {
		select {
		case <-ctx.Done():
			log.Info("Payment event consumer stopped")
			return
		default:
		}

		ev := c.consumer.Poll(100)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			c.handleMessage(ctx, e.Value)
		case kafka.Error:
			log.WithError(e).Error("Kafka error")
			if e.IsFatal() {
				return
			}
		}
	}
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, value []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		log.WithError(err).Error("Failed to unmarshal event envelope")
		return
	}

	logCtx := log.WithField("eventType", envelope.Type)

	switch envelope.Type {
	case eventPaymentSucceeded:
		var evt models.PaymentSucceededEvent
		if err := json.Unmarshal(envelope.Data, &evt); err != nil {
			logCtx.WithError(err).Error("Failed to unmarshal payment succeeded event")
			return
		}
		if _, err := c.commissions.RecordPayment(ctx, evt); err != nil {
			logCtx.WithError(err).WithField("paymentId", evt.PaymentID).
				Error("Failed to process payment succeeded event")
		}

	case eventPaymentRefunded:
		var evt models.PaymentRefundedEvent
		if err := json.Unmarshal(envelope.Data, &evt); err != nil {
			logCtx.WithError(err).Error("Failed to unmarshal refund event")
			return
		}
		if err := c.adjustments.HandleRefund(ctx, evt); err != nil {
			logCtx.WithError(err).WithField("paymentId", evt.PaymentID).
				Error("Failed to process refund event")
		}

	case eventPaymentChargedBack:
		var evt models.PaymentChargedBackEvent
		if err := json.Unmarshal(envelope.Data, &evt); err != nil {
			logCtx.WithError(err).Error("Failed to unmarshal chargeback event")
			return
		}
		if err := c.adjustments.HandleChargeback(ctx, evt); err != nil {
			logCtx.WithError(err).WithField("paymentId", evt.PaymentID).
				Error("Failed to process chargeback event")
		}

	case eventUserRegistered:
		var evt models.UserRegisteredEvent
		if err := json.Unmarshal(envelope.Data, &evt); err != nil {
			logCtx.WithError(err).Error("Failed to unmarshal registration event")
			return
		}
		if _, err := c.referralSvc.Register(ctx, evt); err != nil {
			// Invalid codes and self-referrals on the stream are expected
			// noise, everything else is worth a look.
			logCtx.WithError(err).WithField("referralCode", evt.ReferralCode).
				Info("Registration event not attributed")
		}

	default:
		logCtx.Warn("Unknown event type on payment topic, skipping")
	}
}
