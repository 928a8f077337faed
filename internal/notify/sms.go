package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"retrievr/monitor-service/internal/model"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// SMSChannel delivers high-priority alerts through the Twilio Messages API.
type SMSChannel struct {
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

func NewSMSChannel(accountSID, authToken, from string) *SMSChannel {
	return &SMSChannel{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: sendTimeout},
	}
}

func (c *SMSChannel) Name() string { return ChannelSMS }

func (c *SMSChannel) Send(ctx context.Context, a model.Alert) error {
	form := url.Values{}
	form.Set("To", a.Profile.OwnerPhone)
	form.Set("From", c.from)
	form.Set("Body", SMSText(a))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioAPIBase, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	// Twilio answers 201 for a queued message.
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
