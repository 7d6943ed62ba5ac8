package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/wallet/pkg/walletflow"
)

const creditChannelPrefix = "wallet:credit:"

// Errors returned by the notification channel.
var (
	ErrInvalidChannelConfig = errors.New("invalid notification channel config")
	ErrChannelOpen          = errors.New("notification channel already open")
	ErrChannelClosed        = errors.New("notification channel not open")
)

// CreditEvent is the wire payload published when money arrives. Amounts on
// the wire are rupee numbers.
type CreditEvent struct {
	Amount     float64   `json:"amount"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	RecordID   string    `json:"recordId"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryCache is where synthesized credit records are prepended.
type HistoryCache interface {
	PrependRecord(ctx context.Context, owner walletflow.UserID, record walletflow.TransactionRecord) error
}

// Chime plays the incoming-money sound. Playback is best-effort: a failure
// is logged and never surfaced.
type Chime interface {
	Play() error
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithChime wires the notification sound.
func WithChime(chime Chime) ChannelOption {
	return func(channel *Channel) {
		channel.chime = chime
	}
}

// WithCreditCallback wires the transient in-app notification.
func WithCreditCallback(callback func(record walletflow.TransactionRecord)) ChannelOption {
	return func(channel *Channel) {
		channel.onCredit = callback
	}
}

// Channel joins the viewer's credit feed over Redis pub/sub for the
// lifetime of a session.
type Channel struct {
	redisClient *redis.Client
	cache       HistoryCache
	logger      *zap.Logger
	chime       Chime
	onCredit    func(record walletflow.TransactionRecord)

	mutex  sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewChannel wires a channel. A nil logger falls back to a no-op one.
func NewChannel(redisClient *redis.Client, cache HistoryCache, logger *zap.Logger, options ...ChannelOption) (*Channel, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("%w: redis client dependency is nil", ErrInvalidChannelConfig)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: history cache dependency is nil", ErrInvalidChannelConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	channel := &Channel{
		redisClient: redisClient,
		cache:       cache,
		logger:      logger,
	}
	for _, option := range options {
		if option != nil {
			option(channel)
		}
	}
	return channel, nil
}

// Open subscribes to the owner's credit feed. One subscription per channel;
// call Close before reopening for another session.
func (channel *Channel) Open(ctx context.Context, owner walletflow.UserID) error {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()
	if channel.pubsub != nil {
		return ErrChannelOpen
	}
	pubsub := channel.redisClient.Subscribe(ctx, creditChannelName(owner))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe credit feed: %w", err)
	}
	channel.pubsub = pubsub
	channel.done = make(chan struct{})
	go channel.consume(pubsub.Channel(), owner, channel.done)
	channel.logger.Info("credit feed joined", zap.String("user_id", owner.String()))
	return nil
}

// Close leaves the feed and waits for the consumer to stop. It is called
// on every session end.
func (channel *Channel) Close() error {
	channel.mutex.Lock()
	pubsub := channel.pubsub
	done := channel.done
	channel.pubsub = nil
	channel.done = nil
	channel.mutex.Unlock()
	if pubsub == nil {
		return ErrChannelClosed
	}
	err := pubsub.Close()
	<-done
	return err
}

func (channel *Channel) consume(messages <-chan *redis.Message, owner walletflow.UserID, done chan struct{}) {
	defer close(done)
	for message := range messages {
		channel.handlePayload(context.Background(), owner, []byte(message.Payload))
	}
}

// handlePayload decodes one event and runs the three-step dispatch:
// prepend to the history cache, fire the transient notification, play the
// chime.
func (channel *Channel) handlePayload(ctx context.Context, owner walletflow.UserID, payload []byte) {
	var event CreditEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		channel.logger.Warn("credit event decode failed", zap.Error(err))
		return
	}
	record := event.toRecord(owner)
	if err := channel.cache.PrependRecord(ctx, owner, record); err != nil {
		channel.logger.Warn("credit record prepend failed", zap.Error(err))
	}
	if channel.onCredit != nil {
		channel.onCredit(record)
	}
	if channel.chime != nil {
		if err := channel.chime.Play(); err != nil {
			channel.logger.Debug("chime playback failed", zap.Error(err))
		}
	}
}

func (event CreditEvent) toRecord(owner walletflow.UserID) walletflow.TransactionRecord {
	recordID := event.RecordID
	if recordID == "" {
		recordID = uuid.NewString()
	}
	createdAt := event.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return walletflow.TransactionRecord{
		ID:         recordID,
		SenderID:   event.SenderID,
		SenderName: event.SenderName,
		ReceiverID: owner.String(),
		Amount:     walletflow.AmountPaise(math.Round(event.Amount * 100)),
		CreatedAt:  createdAt,
	}
}

func creditChannelName(owner walletflow.UserID) string {
	return creditChannelPrefix + owner.String()
}
