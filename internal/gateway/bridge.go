// Package gateway connects the engine to a chat platform gateway over Redis
// Pub/Sub. The platform side publishes user events on the inbound channel
// and renders the commands published on the outbound channel.
//
// Messages the bot sends are identified by the reference returned from Send.
// The platform gateway keeps the mapping to its own message ids and reports
// bot messages back (MessageID on inbound events) by that reference.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dyluth/stockpanel/internal/bot"
	"github.com/dyluth/stockpanel/internal/notice"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

// ErrNoGateway is returned when no platform gateway listens on the outbound channel.
var ErrNoGateway = errors.New("no gateway subscribed to outbound channel")

// Op is the kind of outbound render command.
type Op string

const (
	OpSend   Op = "send"
	OpEdit   Op = "edit"
	OpDelete Op = "delete"
	OpReply  Op = "reply"
	OpModal  Op = "modal"
)

// Command is one outbound render command.
type Command struct {
	Op            Op              `json:"op"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Ref           string          `json:"ref,omitempty"`
	InteractionID string          `json:"interaction_id,omitempty"`
	Message       *notice.Message `json:"message,omitempty"`
	Modal         *notice.Modal   `json:"modal,omitempty"`
}

// Bridge publishes render commands and subscribes to inbound events for one instance.
type Bridge struct {
	rdb      *redis.Client
	instance string
	newRef   func() string
	logger   *zap.Logger
}

var _ bot.Messenger = (*Bridge)(nil)

// New creates a bridge over rdb. The caller owns rdb.
func New(rdb *redis.Client, instance string, logger *zap.Logger) (*Bridge, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		rdb:      rdb,
		instance: instance,
		newRef:   uuid.NewString,
		logger:   logger.With(zap.String("component", "gateway")),
	}, nil
}

// Send publishes msg for channelID and returns the new message reference.
func (b *Bridge) Send(ctx context.Context, channelID string, msg notice.Message) (string, error) {
	ref := b.newRef()
	if err := b.publish(ctx, Command{Op: OpSend, ChannelID: channelID, Ref: ref, Message: &msg}); err != nil {
		return "", err
	}
	return ref, nil
}

// Edit replaces the content of a previously sent message.
func (b *Bridge) Edit(ctx context.Context, channelID, ref string, msg notice.Message) error {
	return b.publish(ctx, Command{Op: OpEdit, ChannelID: channelID, Ref: ref, Message: &msg})
}

// Delete removes a message.
func (b *Bridge) Delete(ctx context.Context, channelID, ref string) error {
	return b.publish(ctx, Command{Op: OpDelete, ChannelID: channelID, Ref: ref})
}

// Reply answers an interaction privately.
func (b *Bridge) Reply(ctx context.Context, interactionID string, msg notice.Message) error {
	msg.Ephemeral = true
	return b.publish(ctx, Command{Op: OpReply, InteractionID: interactionID, Message: &msg})
}

// ShowModal opens modal in answer to an interaction.
func (b *Bridge) ShowModal(ctx context.Context, interactionID string, modal notice.Modal) error {
	return b.publish(ctx, Command{Op: OpModal, InteractionID: interactionID, Modal: &modal})
}

func (b *Bridge) publish(ctx context.Context, cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal %s command: %w", cmd.Op, err)
	}
	receivers, err := b.rdb.Publish(ctx, ledger.OutboundEventsChannel(b.instance), payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s command: %w", cmd.Op, err)
	}
	if receivers == 0 {
		return fmt.Errorf("%s command: %w", cmd.Op, ErrNoGateway)
	}
	b.logger.Debug("command published", zap.String("op", string(cmd.Op)), zap.String("ref", cmd.Ref))
	return nil
}

// Inbound is an active subscription to user events. It implements bot.Source.
// Caller must call Close() to clean up resources.
type Inbound struct {
	events <-chan *bot.Event
	errors <-chan error
	cancel context.CancelFunc
}

var _ bot.Source = (*Inbound)(nil)

// Events returns a read-only channel that delivers decoded user events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Inbound) Events() <-chan *bot.Event {
	return s.events
}

// Errors returns a read-only channel that delivers decode errors.
func (s *Inbound) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and releases resources.
func (s *Inbound) Close() error {
	s.cancel()
	return nil
}

// Subscribe subscribes to inbound user events for this instance.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 64). Redis Pub/Sub is at-most-once:
// a slow subscriber can miss events.
func (b *Bridge) Subscribe(ctx context.Context) (*Inbound, error) {
	pubsub := b.rdb.Subscribe(ctx, ledger.InboundEventsChannel(b.instance))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to inbound events: %w", err)
	}

	eventsChan := make(chan *bot.Event, 64)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev bot.Event
				err := json.Unmarshal([]byte(msg.Payload), &ev)
				if err == nil {
					err = ev.Validate()
				}
				if err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to decode inbound event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	b.logger.Info("subscribed to inbound events", zap.String("channel", ledger.InboundEventsChannel(b.instance)))
	return &Inbound{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
