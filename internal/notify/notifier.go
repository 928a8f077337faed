// Package notify turns stored analysis results into owner alerts.
//
// Dispatch reads pending results straight from the store rather than from
// the cycle that produced them. A result whose every channel failed keeps
// notification_sent = false and simply reappears in the next scan, so
// retry costs nothing extra.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"retrievr/monitor-service/internal/events"
	"retrievr/monitor-service/internal/model"
)

// pendingLimit bounds one dispatch scan so a backlog cannot hold a cycle
// open indefinitely.
const pendingLimit = 100

// Channel delivers one alert to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, a model.Alert) error
}

// AlertStore is the slice of the result store dispatch reads and flags.
type AlertStore interface {
	ListPending(ctx context.Context, limit int) ([]model.Alert, error)
	MarkNotified(ctx context.Context, resultID string, at time.Time) error
}

// Outcome aggregates one dispatch run for the cycle summary.
type Outcome struct {
	Sent   int // results with at least one accepted channel
	Errors int // failed channel sends and store failures
}

// Dispatcher fans pending alerts out to the configured channels.
type Dispatcher struct {
	store    AlertStore
	channels []Channel
	policy   Policy
	events   *events.Publisher
}

func NewDispatcher(store AlertStore, channels []Channel, policy Policy, pub *events.Publisher) *Dispatcher {
	return &Dispatcher{
		store:    store,
		channels: channels,
		policy:   policy,
		events:   pub,
	}
}

type alertEvent struct {
	ResultID  string    `json:"resultId"`
	ListingID string    `json:"listingId"`
	ProfileID string    `json:"profileId"`
	Score     float64   `json:"score"`
	Channels  []string  `json:"channels"`
	SentAt    time.Time `json:"sentAt"`
}

// DispatchPending scans for unsent qualifying results and pushes each
// through every channel the policy allows. A result is flagged sent when
// at least one channel accepts; per-channel failures are logged and
// counted but never block the remaining alerts.
func (d *Dispatcher) DispatchPending(ctx context.Context) (Outcome, error) {
	alerts, err := d.store.ListPending(ctx, pendingLimit)
	if err != nil {
		return Outcome{}, fmt.Errorf("list pending alerts: %w", err)
	}

	var out Outcome
	for _, a := range alerts {
		if ctx.Err() != nil {
			break
		}

		accepted := d.dispatchOne(ctx, a, &out)
		if len(accepted) == 0 {
			continue
		}

		now := time.Now().UTC()
		if err := d.store.MarkNotified(ctx, a.Result.ID, now); err != nil {
			log.Printf("[notify] Mark notified failed (result %s): %v", a.Result.ID, err)
			out.Errors++
			continue
		}
		out.Sent++

		d.events.Publish(ctx, events.ChannelAlertSent, alertEvent{
			ResultID:  a.Result.ID,
			ListingID: a.Listing.ID,
			ProfileID: a.Profile.ID,
			Score:     a.Result.MatchScore,
			Channels:  accepted,
			SentAt:    now,
		})
	}
	return out, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, a model.Alert, out *Outcome) []string {
	var accepted []string
	for _, ch := range d.channels {
		if !d.policy.Allows(ch.Name(), a) {
			continue
		}
		if err := ch.Send(ctx, a); err != nil {
			log.Printf("[notify] %s send failed (result %s): %v", ch.Name(), a.Result.ID, err)
			out.Errors++
			continue
		}
		accepted = append(accepted, ch.Name())
	}

	if len(accepted) > 0 {
		log.Printf("[notify] Alert sent for %q (score %.1f) via %v", a.Listing.Title, a.Result.MatchScore, accepted)
	}
	return accepted
}
