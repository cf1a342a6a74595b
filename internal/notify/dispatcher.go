// internal/notify/dispatcher.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"intake-engine/internal/common/config"
	"intake-engine/internal/common/logger"
	"intake-engine/internal/engine/status"
	"intake-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Channel selects where a status-change notification goes.
type Channel string

const (
	ChannelWebex Channel = "webex"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// TemplateKind names the canned notification templates.
type TemplateKind string

const (
	TemplateAssignmentCreated  TemplateKind = "assignment_created"
	TemplateApprovalRequested  TemplateKind = "approval_requested"
	TemplateAssignmentComplete TemplateKind = "assignment_complete"
)

// Dispatcher is the notification collaborator. Both calls are
// best-effort: the processor logs failures and never rolls back the
// owning transition.
type Dispatcher interface {
	NotifyStatusChanges(ctx context.Context, a *models.Assignment, changes []status.Change, channel Channel) error
	SendTemplate(ctx context.Context, a *models.Assignment, kind TemplateKind) error
}

// EmailSender is the SES surface the dispatcher needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSPublisher is the SNS surface the dispatcher needs.
type SMSPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// HTTPDoer is the outbound HTTP surface used for Webex posts.
type HTTPDoer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// MultiDispatcher fans notifications out to Webex, SES email and SNS
// SMS, each individually toggled by configuration.
type MultiDispatcher struct {
	cfg    config.NotificationConfig
	http   HTTPDoer
	email  EmailSender
	sms    SMSPublisher
	logger logger.Logger
}

func NewMultiDispatcher(cfg config.NotificationConfig, httpClient HTTPDoer, email EmailSender, sms SMSPublisher, log logger.Logger) *MultiDispatcher {
	return &MultiDispatcher{
		cfg:    cfg,
		http:   httpClient,
		email:  email,
		sms:    sms,
		logger: log,
	}
}

func (d *MultiDispatcher) NotifyStatusChanges(ctx context.Context, a *models.Assignment, changes []status.Change, channel Channel) error {
	if len(changes) == 0 {
		return nil
	}
	message := formatChanges(a, changes)

	switch channel {
	case ChannelWebex:
		return d.postWebex(ctx, message)
	case ChannelEmail:
		return d.sendEmail(ctx, a, "Assignment status update", message)
	case ChannelSMS:
		return d.publishSMS(ctx, message)
	}
	return fmt.Errorf("unknown notification channel: %s", channel)
}

func (d *MultiDispatcher) SendTemplate(ctx context.Context, a *models.Assignment, kind TemplateKind) error {
	subject, body := renderTemplate(a, kind)

	// Templates go to email; Webex gets a copy when enabled.
	if err := d.sendEmail(ctx, a, subject, body); err != nil {
		return err
	}
	if d.cfg.Webex.Enabled {
		if err := d.postWebex(ctx, body); err != nil {
			d.logger.Warn("webex copy of template failed", map[string]interface{}{
				"assignmentId": a.ID,
				"template":     string(kind),
				"error":        err.Error(),
			})
		}
	}
	return nil
}

func (d *MultiDispatcher) postWebex(ctx context.Context, message string) error {
	if !d.cfg.Webex.Enabled || d.http == nil {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"roomId":   d.cfg.Webex.RoomID,
		"markdown": message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webex payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.Webex.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webex request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.cfg.Webex.Token)

	resp, err := d.http.DoWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("webex post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webex post rejected: %d", resp.StatusCode)
	}
	return nil
}

func (d *MultiDispatcher) sendEmail(ctx context.Context, a *models.Assignment, subject, body string) error {
	if !d.cfg.Email.Enabled || d.email == nil {
		return nil
	}
	if a.AccountManager.Email == "" {
		return nil
	}

	_, err := d.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(d.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{a.AccountManager.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	return nil
}

func (d *MultiDispatcher) publishSMS(ctx context.Context, message string) error {
	if !d.cfg.SMS.Enabled || d.sms == nil {
		return nil
	}

	_, err := d.sms.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.cfg.SMS.TopicARN),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sms publish failed: %w", err)
	}
	return nil
}

func formatChanges(a *models.Assignment, changes []status.Change) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assignment %s (opportunity %s):\n", a.ID, a.OpportunityID)
	for _, c := range changes {
		if c.Assignee == "" {
			fmt.Fprintf(&b, "- status %s -> %s\n", c.From, c.To)
			continue
		}
		fmt.Fprintf(&b, "- %s / %s: %s -> %s\n", c.Assignee, c.Practice, c.From, c.To)
	}
	return b.String()
}

func renderTemplate(a *models.Assignment, kind TemplateKind) (string, string) {
	switch kind {
	case TemplateAssignmentCreated:
		return fmt.Sprintf("New assignment for opportunity %s", a.OpportunityID),
			fmt.Sprintf("Assignment %s created with practices: %s.",
				a.ID, strings.Join(a.Practices(), ", "))
	case TemplateApprovalRequested:
		return fmt.Sprintf("Approval requested on opportunity %s", a.OpportunityID),
			fmt.Sprintf("Assignment %s is awaiting approval from its assignees.", a.ID)
	case TemplateAssignmentComplete:
		return fmt.Sprintf("Opportunity %s complete", a.OpportunityID),
			fmt.Sprintf("All assignees on assignment %s have approved completion.", a.ID)
	}
	return "Assignment update", fmt.Sprintf("Assignment %s was updated.", a.ID)
}
