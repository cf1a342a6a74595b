// internal/mail/client.go
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	commonerrors "intake-engine/internal/common/errors"
	commonhttp "intake-engine/internal/common/http"
	"intake-engine/internal/common/logger"
	"intake-engine/internal/models"
)

// GatewayClient talks to the mail gateway service that fronts the
// actual mailbox. Protocol authentication and transport live behind the
// gateway; this client only fetches and acknowledges.
type GatewayClient struct {
	baseURL string
	token   string
	http    *commonhttp.Client
	logger  logger.Logger
}

func NewGatewayClient(baseURL, token string, httpClient *commonhttp.Client, log logger.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		token:   token,
		http:    httpClient,
		logger:  log,
	}
}

// CheckNewMail lists unread messages received since the given time.
func (c *GatewayClient) CheckNewMail(ctx context.Context, since time.Time) ([]models.InboundEmail, error) {
	endpoint := fmt.Sprintf("%s/messages?since=%s", c.baseURL,
		url.QueryEscape(since.UTC().Format(time.RFC3339)))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mail request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, commonerrors.NewMailFetchFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mail gateway returned %d", resp.StatusCode)
	}

	var emails []models.InboundEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return nil, fmt.Errorf("failed to decode mail response: %w", err)
	}
	return emails, nil
}

// MarkAsRead acknowledges a processed message.
func (c *GatewayClient) MarkAsRead(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/messages/%s/read", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequest(http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build mark-as-read request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("mark-as-read failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail gateway returned %d", resp.StatusCode)
	}
	return nil
}

func (c *GatewayClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
