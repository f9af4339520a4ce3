// Package nats applies record change events from a JetStream stream to the index.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
)

// Event subject suffixes.
const (
	SuffixUpserted = "upserted"
	SuffixDeleted  = "deleted"
)

// Syncer applies a single record change to the index.
type Syncer interface {
	SyncOne(ctx context.Context, id string) error
	RemoveOne(ctx context.Context, id string) error
}

// Config configures the consumer.
type Config struct {
	URL string
	// Stream is created or updated to capture Subject.>.
	Stream  string
	Subject string
	Durable string
	// RetryDelay delays redelivery after a retryable failure.
	RetryDelay time.Duration
}

type action int

const (
	actionAck action = iota
	actionNak
	actionTerm
)

type event struct {
	ID string `json:"id"`
}

// Consumer is a durable JetStream consumer of record change events.
type Consumer struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	cfg    Config
	syncer Syncer
	logger *zap.Logger
	cc     jetstream.ConsumeContext
}

// Connect dials NATS and prepares JetStream.
func Connect(cfg Config, syncer Syncer, logger *zap.Logger) (*Consumer, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return newConsumer(cfg, syncer, logger, nc, js), nil
}

func newConsumer(cfg Config, syncer Syncer, logger *zap.Logger, nc *nats.Conn, js jetstream.JetStream) *Consumer {
	return &Consumer{nc: nc, js: js, cfg: cfg, syncer: syncer, logger: logger}
}

// Start ensures the stream and durable consumer exist and begins consuming.
// Handlers run with ctx; cancel it and call Close to stop.
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     c.cfg.Stream,
		Subjects: []string{c.cfg.Subject + ".>"},
	}); err != nil {
		return fmt.Errorf("ensure stream %s: %w", c.cfg.Stream, err)
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable: c.cfg.Durable,
		FilterSubjects: []string{
			c.cfg.Subject + "." + SuffixUpserted,
			c.cfg.Subject + "." + SuffixDeleted,
		},
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", c.cfg.Durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		c.settle(msg, c.handle(ctx, msg.Subject(), msg.Data()))
	})
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.cc = cc

	c.logger.Info("Consuming record events",
		zap.String("stream", c.cfg.Stream),
		zap.String("subject", c.cfg.Subject),
		zap.String("durable", c.cfg.Durable),
	)
	return nil
}

func (c *Consumer) settle(msg jetstream.Msg, a action) {
	var err error
	switch a {
	case actionAck:
		err = msg.Ack()
	case actionNak:
		if c.cfg.RetryDelay > 0 {
			err = msg.NakWithDelay(c.cfg.RetryDelay)
		} else {
			err = msg.Nak()
		}
	case actionTerm:
		err = msg.Term()
	}
	if err != nil {
		c.logger.Warn("Failed to settle message", zap.String("subject", msg.Subject()), zap.Error(err))
	}
}

// handle applies one event and decides how to settle it. A missing record on
// upsert is acked since there is nothing to index; retryable sync failures are
// redelivered; malformed events are terminated.
func (c *Consumer) handle(ctx context.Context, subject string, data []byte) action {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil || strings.TrimSpace(ev.ID) == "" {
		c.logger.Warn("Dropping malformed record event", zap.String("subject", subject), zap.Error(err))
		return actionTerm
	}

	var err error
	switch strings.TrimPrefix(subject, c.cfg.Subject+".") {
	case SuffixUpserted:
		err = c.syncer.SyncOne(ctx, ev.ID)
	case SuffixDeleted:
		err = c.syncer.RemoveOne(ctx, ev.ID)
	default:
		c.logger.Warn("Dropping event on unknown subject", zap.String("subject", subject))
		return actionTerm
	}

	switch {
	case err == nil:
		return actionAck
	case errors.Is(err, domain.ErrRecordNotFound):
		c.logger.Debug("Record gone before sync", zap.String("id", ev.ID))
		return actionAck
	case errors.Is(err, domain.ErrSyncFailed):
		c.logger.Warn("Record event failed, will retry", zap.String("id", ev.ID), zap.Error(err))
		return actionNak
	default:
		c.logger.Error("Record event failed", zap.String("id", ev.ID), zap.Error(err))
		return actionNak
	}
}

// Close stops consuming and drains the connection.
func (c *Consumer) Close() {
	if c.cc != nil {
		c.cc.Stop()
	}
	if c.nc != nil {
		if err := c.nc.Drain(); err != nil {
			c.nc.Close()
		}
	}
}
