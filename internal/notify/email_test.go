package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "test@example.com"}, nil)
	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "test@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name %q, got %q", defaultFromName, sender.fromName)
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "recipient@example.com", Subject: "Test", Body: "Test body"})
	if err == nil {
		t.Error("expected error when client is nil")
	}
}

type fakeSendGrid struct {
	status int
	err    error
	sent   *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = m
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender_Send(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := &SendGridSender{client: fake, fromEmail: "clinic@example.com", fromName: "Little Steps", logger: logging.Default()}

	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "ana@example.com", ToName: "Ana", Subject: "Hi", Body: "text"}))
	require.NotNil(t, fake.sent)
	assert.Equal(t, "Hi", fake.sent.Subject)
	assert.Equal(t, "clinic@example.com", fake.sent.From.Address)

	fake.status = 401
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "ana@example.com"}))

	fake.err = errors.New("dial tcp: timeout")
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "ana@example.com"}))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "clinic@example.com"}, nil)
	require.NotNil(t, sender)

	err := sender.Send(context.Background(), EmailMessage{To: "ana@example.com", Subject: "Reminder", Body: "plain", HTML: "<p>html</p>"})
	require.NoError(t, err)
	assert.Equal(t, "Clinic Scheduler <clinic@example.com>", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"ana@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "plain", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(fake.input.Content.Simple.Body.Html.Data))

	fake.err = errors.New("throttled")
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "ana@example.com"}))
}

func TestNewSESSender_NilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(nil)
	err := sender.Send(context.Background(), EmailMessage{To: "recipient@example.com", Subject: "Test Subject"})
	if err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}
