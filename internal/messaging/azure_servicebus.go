package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SteveArevalo/CS499-CapStone/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const receiveBatchSize = 10

// ErrPoisonMessage marks a message that can never be processed. Handlers wrap
// it so the message is dead-lettered instead of redelivered.
var ErrPoisonMessage = errors.New("message cannot be processed")

// MessageHandler processes one received message
type MessageHandler func(ctx context.Context, msg *azservicebus.ReceivedMessage) error

type receiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
	Close(ctx context.Context) error
}

type sender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// AzureServiceBus consumes and publishes intake events on one queue
type AzureServiceBus struct {
	client    *azservicebus.Client
	receiver  receiver
	sender    sender
	queueName string
	source    string
}

// NewAzureServiceBus connects to the intake queue
func NewAzureServiceBus(cfg config.AzureConfig, source string) (*AzureServiceBus, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	return &AzureServiceBus{
		client:    client,
		queueName: cfg.QueueName,
		source:    source,
	}, nil
}

// ProcessMessages receives messages until ctx is cancelled. Messages the
// handler accepts are completed, poison messages are dead-lettered and all
// other failures are abandoned for redelivery.
func (b *AzureServiceBus) ProcessMessages(ctx context.Context, handler MessageHandler) error {
	if b.receiver == nil {
		r, err := b.client.NewReceiverForQueue(b.queueName, nil)
		if err != nil {
			return errors.Wrap(err, "failed to create Service Bus receiver")
		}
		b.receiver = r
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.receiver.Close(closeCtx); err != nil {
			log.Error().Err(err).Str("queue", b.queueName).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		messages, err := b.receiver.ReceiveMessages(ctx, receiveBatchSize, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to receive messages")
		}

		if len(messages) > 0 {
			log.Debug().Int("count", len(messages)).Str("queue", b.queueName).Msg("Received messages")
		}

		for _, msg := range messages {
			b.settle(ctx, msg, handler(ctx, msg))
		}
	}
}

func (b *AzureServiceBus) settle(ctx context.Context, msg *azservicebus.ReceivedMessage, handlerErr error) {
	logger := log.With().Str("message_id", msg.MessageID).Logger()

	switch {
	case handlerErr == nil:
		if err := b.receiver.CompleteMessage(ctx, msg, nil); err != nil {
			logger.Error().Err(err).Msg("Failed to complete message")
		}
	case errors.Is(handlerErr, ErrPoisonMessage):
		logger.Error().Err(handlerErr).Msg("Dead-lettering message")
		reason := "InvalidIntakeMessage"
		description := handlerErr.Error()
		if err := b.receiver.DeadLetterMessage(ctx, msg, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &description,
		}); err != nil {
			logger.Error().Err(err).Msg("Failed to dead-letter message")
		}
	default:
		logger.Error().Err(handlerErr).Msg("Error processing message, abandoning")
		if err := b.receiver.AbandonMessage(ctx, msg, nil); err != nil {
			logger.Error().Err(err).Msg("Failed to abandon message")
		}
	}
}

// SendMessage publishes body as JSON to the queue
func (b *AzureServiceBus) SendMessage(ctx context.Context, body interface{}) error {
	if b.sender == nil {
		s, err := b.client.NewSender(b.queueName, nil)
		if err != nil {
			return errors.Wrap(err, "failed to create Service Bus sender")
		}
		b.sender = s
	}

	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message body")
	}

	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:        data,
		ContentType: &contentType,
		ApplicationProperties: map[string]interface{}{
			"source": b.source,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}
	return errors.Wrap(b.sender.SendMessage(ctx, msg, nil), "failed to send message")
}

// Close closes the sender and the client
func (b *AzureServiceBus) Close(ctx context.Context) error {
	if b.sender != nil {
		if err := b.sender.Close(ctx); err != nil {
			return errors.Wrap(err, "failed to close Service Bus sender")
		}
	}
	if b.client != nil {
		return b.client.Close(ctx)
	}
	return nil
}
