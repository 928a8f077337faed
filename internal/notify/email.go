package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"retrievr/monitor-service/internal/model"
)

const (
	sendgridSendURL = "https://api.sendgrid.com/v3/mail/send"
	sendTimeout     = 15 * time.Second
)

type sgMailRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// EmailChannel delivers owner alerts through the SendGrid v3 mail API.
type EmailChannel struct {
	apiKey string
	from   string
	client *http.Client
}

func NewEmailChannel(apiKey, from string) *EmailChannel {
	return &EmailChannel{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: sendTimeout},
	}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, a model.Alert) error {
	payload, err := json.Marshal(sgMailRequest{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: a.Profile.OwnerEmail}}}},
		From:             sgAddress{Email: c.from},
		Subject:          EmailSubject(a),
		Content:          []sgContent{{Type: "text/plain", Value: EmailBody(a)}},
	})
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendgridSendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	// SendGrid acknowledges accepted mail with 202.
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
