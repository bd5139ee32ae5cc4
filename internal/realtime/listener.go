// Package realtime subscribes to row changes of the report table and hands
// them to the cache as RemoteEvents.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/repository"
)

const defaultReconnectDelay = 2 * time.Second

// Handler receives one decoded change for petID.
type Handler func(ctx context.Context, petID string, ev entity.RemoteEvent)

type Listener struct {
	pool           *pgxpool.Pool
	channel        string
	pets           map[string]struct{}
	reconnectDelay time.Duration
	logger         *slog.Logger
}

type Option func(*Listener)

// WithPetFilter restricts delivery to the given pets. No filter delivers all.
func WithPetFilter(petIDs ...string) Option {
	return func(l *Listener) {
		for _, id := range petIDs {
			l.pets[id] = struct{}{}
		}
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.reconnectDelay = d
		}
	}
}

func NewListener(pool *pgxpool.Pool, channel string, logger *slog.Logger, opts ...Option) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Listener{
		pool:           pool,
		channel:        channel,
		pets:           make(map[string]struct{}),
		reconnectDelay: defaultReconnectDelay,
		logger:         logger,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run listens until ctx is done, re-subscribing after connection loss.
func (l *Listener) Run(ctx context.Context, handle Handler) error {
	for {
		err := l.listen(ctx, handle)
		if ctx.Err() != nil {
			l.logger.Info("realtime listener stopped", "channel", l.channel)
			return nil
		}
		l.logger.Warn("realtime connection lost, resubscribing", "channel", l.channel, "error", err, "delay", l.reconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context, handle Handler) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info("realtime listening", "channel", l.channel, "pet_filter", len(l.pets))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, n.Payload, handle)
	}
}

func (l *Listener) dispatch(ctx context.Context, payload string, handle Handler) {
	petID, ev, err := DecodeNotification(payload)
	if err != nil {
		l.logger.Warn("realtime payload dropped", "error", err, "bytes", len(payload))
		return
	}
	if !l.accepts(petID) {
		return
	}
	l.logger.Debug("realtime event", "kind", ev.Kind, "pet_id", petID, "report_id", ev.Record.ID)
	handle(ctx, petID, ev)
}

func (l *Listener) accepts(petID string) bool {
	if len(l.pets) == 0 {
		return true
	}
	_, ok := l.pets[petID]
	return ok
}

type notification struct {
	Kind   entity.EventKind  `json:"kind"`
	Record repository.Record `json:"record"`
}

// DecodeNotification parses a pg_notify payload of the form {kind, record}.
func DecodeNotification(payload string) (string, entity.RemoteEvent, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return "", entity.RemoteEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	if !n.Kind.Valid() {
		return "", entity.RemoteEvent{}, fmt.Errorf("unknown event kind %q", n.Kind)
	}
	if n.Record.ID == "" || n.Record.PetID == "" {
		return "", entity.RemoteEvent{}, errors.New("notification record lacks id or pet_id")
	}
	rec, err := n.Record.ToEntity()
	if err != nil {
		return "", entity.RemoteEvent{}, err
	}
	return rec.PetID, entity.RemoteEvent{Kind: n.Kind, Record: rec}, nil
}
