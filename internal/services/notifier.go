// Package services – winner notification contract.
//
// The draw engine hands winners off to a Notifier after its transaction has
// committed. Delivery is best-effort and fire-and-forget: a failed or slow
// notification never invalidates a committed draw, and the engine performs no
// retries of its own (queueing/retry policy belongs to the dispatcher
// implementation).
package services

import (
	"context"

	"github.com/rs/zerolog/log"
)

// EventLotteryWin is the event type dispatched for each winner of a draw.
const EventLotteryWin = "lottery.win"

// WinEvent is the payload delivered to a winner. It carries everything a
// dispatcher needs to render a "you won" message.
type WinEvent struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Rank         int    `json:"rank"`
	PrizeName    string `json:"prize_name"`
	PrizeValue   int64  `json:"prize_value"`
}

// Notifier dispatches a single event to a single user. Implementations must
// be safe for concurrent use; they may block on their transport, which is why
// the draw engine invokes them on a detached goroutine.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, eventType string, event WinEvent) error
}

// LogNotifier is the default Notifier. It records each win event in the
// structured log instead of delivering it anywhere, which is the appropriate
// behavior for development and for deployments where a separate worker tails
// the log stream.
type LogNotifier struct{}

// NotifyUser logs the event at info level and always succeeds.
func (LogNotifier) NotifyUser(_ context.Context, userID, eventType string, ev WinEvent) error {
	log.Info().
		Str("user_id", userID).
		Str("event", eventType).
		Str("campaign_id", ev.CampaignID).
		Str("campaign_name", ev.CampaignName).
		Int("rank", ev.Rank).
		Str("prize_name", ev.PrizeName).
		Int64("prize_value", ev.PrizeValue).
		Msg("winner notification")
	return nil
}
