// internal/notify/dispatcher_test.go
package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"intake-engine/internal/common/config"
	"intake-engine/internal/common/logger"
	"intake-engine/internal/engine/status"
	"intake-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type stubHTTP struct {
	status   int
	err      error
	requests []*http.Request
	bodies   []string
}

func (s *stubHTTP) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	s.requests = append(s.requests, req)
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.bodies = append(s.bodies, string(b))
	}
	if s.err != nil {
		return nil, s.err
	}
	code := s.status
	if code == 0 {
		code = http.StatusOK
	}
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}, nil
}

type stubEmail struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (s *stubEmail) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	s.inputs = append(s.inputs, input)
	return &ses.SendEmailOutput{}, s.err
}

type stubSMS struct {
	inputs []*sns.PublishInput
	err    error
}

func (s *stubSMS) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	s.inputs = append(s.inputs, input)
	return &sns.PublishOutput{}, s.err
}

func allEnabledConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Webex.Enabled = true
	cfg.Webex.URL = "https://webexapis.example/v1/messages"
	cfg.Webex.RoomID = "room-1"
	cfg.Webex.Token = "token-1"
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "intake@corp.com"
	cfg.SMS.Enabled = true
	cfg.SMS.TopicARN = "arn:aws:sns:us-east-1:1:intake"
	return cfg
}

func testAssignment() *models.Assignment {
	return &models.Assignment{
		ID:            "asg-1",
		OpportunityID: "OPP-1",
		AccountManager: models.Person{
			Name:  "Olive Owner",
			Email: "olive@corp.com",
		},
		PracticeAssignees: map[string][]string{"Security": {"Sam"}},
	}
}

func statusChange() []status.Change {
	return []status.Change{{
		AssignmentID: "asg-1",
		From:         string(models.StatusUnassigned),
		To:           string(models.StatusAssigned),
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestMultiDispatcher_NotifyStatusChanges_Webex(t *testing.T) {
	httpStub := &stubHTTP{}
	d := NewMultiDispatcher(allEnabledConfig(), httpStub, &stubEmail{}, &stubSMS{}, logger.NewTestLogger(t))

	err := d.NotifyStatusChanges(context.Background(), testAssignment(), statusChange(), ChannelWebex)
	require.NoError(t, err)
	require.Len(t, httpStub.requests, 1)

	req := httpStub.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "Bearer token-1", req.Header.Get("Authorization"))
	assert.Contains(t, httpStub.bodies[0], "room-1")
	assert.Contains(t, httpStub.bodies[0], "Unassigned")
}

func TestMultiDispatcher_NotifyStatusChanges_Email(t *testing.T) {
	email := &stubEmail{}
	d := NewMultiDispatcher(allEnabledConfig(), &stubHTTP{}, email, &stubSMS{}, logger.NewTestLogger(t))

	err := d.NotifyStatusChanges(context.Background(), testAssignment(), statusChange(), ChannelEmail)
	require.NoError(t, err)
	require.Len(t, email.inputs, 1)
	assert.Equal(t, "intake@corp.com", *email.inputs[0].Source)
	assert.Equal(t, []string{"olive@corp.com"}, email.inputs[0].Destination.ToAddresses)
}

func TestMultiDispatcher_NotifyStatusChanges_SMS(t *testing.T) {
	sms := &stubSMS{}
	d := NewMultiDispatcher(allEnabledConfig(), &stubHTTP{}, &stubEmail{}, sms, logger.NewTestLogger(t))

	err := d.NotifyStatusChanges(context.Background(), testAssignment(), statusChange(), ChannelSMS)
	require.NoError(t, err)
	require.Len(t, sms.inputs, 1)
	assert.Equal(t, "arn:aws:sns:us-east-1:1:intake", *sms.inputs[0].TopicArn)
}

func TestMultiDispatcher_DisabledChannelsAreSilentNoOps(t *testing.T) {
	httpStub := &stubHTTP{}
	email := &stubEmail{}
	sms := &stubSMS{}
	var cfg config.NotificationConfig // everything disabled
	d := NewMultiDispatcher(cfg, httpStub, email, sms, logger.NewTestLogger(t))

	a := testAssignment()
	assert.NoError(t, d.NotifyStatusChanges(context.Background(), a, statusChange(), ChannelWebex))
	assert.NoError(t, d.NotifyStatusChanges(context.Background(), a, statusChange(), ChannelEmail))
	assert.NoError(t, d.NotifyStatusChanges(context.Background(), a, statusChange(), ChannelSMS))

	assert.Empty(t, httpStub.requests)
	assert.Empty(t, email.inputs)
	assert.Empty(t, sms.inputs)
}

func TestMultiDispatcher_EmptyChangeListIsNoOp(t *testing.T) {
	httpStub := &stubHTTP{}
	d := NewMultiDispatcher(allEnabledConfig(), httpStub, &stubEmail{}, &stubSMS{}, logger.NewTestLogger(t))

	err := d.NotifyStatusChanges(context.Background(), testAssignment(), nil, ChannelWebex)
	require.NoError(t, err)
	assert.Empty(t, httpStub.requests)
}

func TestMultiDispatcher_FailuresSurfaceAsErrors(t *testing.T) {
	t.Run("webex rejection", func(t *testing.T) {
		d := NewMultiDispatcher(allEnabledConfig(), &stubHTTP{status: http.StatusUnauthorized},
			&stubEmail{}, &stubSMS{}, logger.NewTestLogger(t))
		err := d.NotifyStatusChanges(context.Background(), testAssignment(), statusChange(), ChannelWebex)
		assert.Error(t, err)
	})

	t.Run("email failure", func(t *testing.T) {
		d := NewMultiDispatcher(allEnabledConfig(), &stubHTTP{},
			&stubEmail{err: errors.New("ses throttled")}, &stubSMS{}, logger.NewTestLogger(t))
		err := d.NotifyStatusChanges(context.Background(), testAssignment(), statusChange(), ChannelEmail)
		assert.Error(t, err)
	})
}

func TestMultiDispatcher_SendTemplate(t *testing.T) {
	httpStub := &stubHTTP{}
	email := &stubEmail{}
	d := NewMultiDispatcher(allEnabledConfig(), httpStub, email, &stubSMS{}, logger.NewTestLogger(t))

	err := d.SendTemplate(context.Background(), testAssignment(), TemplateAssignmentCreated)
	require.NoError(t, err)

	require.Len(t, email.inputs, 1)
	assert.Contains(t, *email.inputs[0].Message.Subject.Data, "OPP-1")
	require.Len(t, httpStub.requests, 1, "webex copy when enabled")
}

func TestMultiDispatcher_SendTemplate_WebexCopyFailureDoesNotFailCall(t *testing.T) {
	d := NewMultiDispatcher(allEnabledConfig(), &stubHTTP{err: errors.New("network down")},
		&stubEmail{}, &stubSMS{}, logger.NewTestLogger(t))

	err := d.SendTemplate(context.Background(), testAssignment(), TemplateApprovalRequested)
	assert.NoError(t, err)
}
