package notify

import "retrievr/monitor-service/internal/model"

// Channel names.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelTelegram = "telegram"
)

// Policy decides which channels carry a given alert. Email goes to the
// owner whenever an address is on file. SMS is reserved for scores at or
// above the SMS threshold and needs a phone number. Telegram is the ops
// feed and carries everything.
type Policy struct {
	SMSThreshold float64
}

func (p Policy) Allows(channel string, a model.Alert) bool {
	switch channel {
	case ChannelEmail:
		return a.Profile.OwnerEmail != ""
	case ChannelSMS:
		return a.Profile.OwnerPhone != "" && a.Result.MatchScore >= p.SMSThreshold
	case ChannelTelegram:
		return true
	default:
		return false
	}
}
