// Package events publishes monitor events to Redis pub/sub for downstream
// consumers (dashboard SSE, audit tooling). Publishing is best-effort:
// failures are logged and never propagate into the cycle.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel names.
const (
	ChannelCycleCompleted = "monitor.cycle.completed"
	ChannelAlertSent      = "monitor.alert.sent"
	ChannelDailySummary   = "monitor.daily.summary"
)

// Publisher wraps a Redis client for event publishing. A nil Publisher (or
// one with a nil client) drops all events, which keeps tests transport-free.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher returns a Publisher backed by rdb.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish marshals v to JSON and publishes it on channel.
func (p *Publisher) Publish(ctx context.Context, channel string, v any) {
	if p == nil || p.rdb == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("marshal event failed", "channel", channel, "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		slog.Warn("publish event failed", "channel", channel, "err", err)
	}
}
