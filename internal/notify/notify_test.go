package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatehub/marketplace/config"
	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/internal/intake"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp: 421 service not available")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func sampleRequest() domain.IntakeRequest {
	return domain.IntakeRequest{
		Reference:    "3f1e2c4a-0000-4000-8000-000000000000",
		Kind:         domain.IntakeCofO,
		ContactName:  "Ada",
		ContactEmail: "ada@example.com",
		Details:      map[string]interface{}{"plot_number": "LA/1", "land_use": "residential"},
		Status:       domain.StatusPending,
	}
}

func TestDispatcherDelivers(t *testing.T) {
	mailer := &recordingMailer{}
	d, err := NewDispatcher(mailer, 2)
	require.NoError(t, err)
	defer d.Close()

	d.Dispatch(Message{To: []string{" a@example.com ", ""}, Subject: "hi"})
	d.Dispatch(Message{To: []string{""}, Subject: "dropped"})
	d.Wait()

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"a@example.com"}, sent[0].To)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	d, err := NewDispatcher(&recordingMailer{fail: true}, 1)
	require.NoError(t, err)
	d.Dispatch(Message{To: []string{"a@example.com"}, Subject: "hi"})
	d.Close()
}

func TestIntakeNotifierOnBus(t *testing.T) {
	mailer := &recordingMailer{}
	d, err := NewDispatcher(mailer, 2)
	require.NoError(t, err)
	defer d.Close()

	bus := EventBus.New()
	require.NoError(t, NewIntakeNotifier(d, "desk@estatehub.local").Subscribe(bus))

	req := sampleRequest()
	bus.Publish(intake.TopicSubmitted, intake.SubmittedEvent{Request: req})
	d.Wait()

	sent := mailer.messages()
	require.Len(t, sent, 2)
	recipients := []string{sent[0].To[0], sent[1].To[0]}
	assert.ElementsMatch(t, []string{"ada@example.com", "desk@estatehub.local"}, recipients)
	for _, m := range sent {
		if m.To[0] == "desk@estatehub.local" {
			assert.Contains(t, m.Body, "land_use=residential, plot_number=LA/1")
		}
	}

	req.Status = domain.StatusApproved
	req.StatusNote = "certificate ready for pickup"
	bus.Publish(intake.TopicStatusChanged, intake.StatusChangedEvent{Request: req, From: domain.StatusVerified})
	d.Wait()

	sent = mailer.messages()
	require.Len(t, sent, 3)
	last := sent[2]
	assert.Equal(t, "Certificate of occupancy application 3f1e2c4a: Approved", last.Subject)
	assert.Contains(t, last.Body, "moved from verified to approved")
	assert.Contains(t, last.Body, "certificate ready for pickup")
	assert.True(t, strings.Contains(last.Body, "No further updates"))
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	_, ok := NewMailer(config.MailConfig{}).(LogMailer)
	assert.True(t, ok)
	_, ok = NewMailer(config.MailConfig{Host: "smtp.example.com", Port: 587}).(*SMTPMailer)
	assert.True(t, ok)
	assert.NoError(t, LogMailer{}.Send(context.Background(), Message{To: []string{"x@example.com"}}))
}
