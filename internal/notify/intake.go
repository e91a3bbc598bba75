package notify

import (
	"fmt"
	"sort"
	"strings"

	EventBus "github.com/asaskevich/EventBus"

	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/internal/intake"
	"github.com/estatehub/marketplace/pkg/common"
)

// IntakeNotifier turns intake events into emails for the requester and the admin desk.
type IntakeNotifier struct {
	dispatcher   *Dispatcher
	adminAddress string
}

func NewIntakeNotifier(dispatcher *Dispatcher, adminAddress string) *IntakeNotifier {
	return &IntakeNotifier{dispatcher: dispatcher, adminAddress: strings.TrimSpace(adminAddress)}
}

// Subscribe registers the notifier on bus.
func (n *IntakeNotifier) Subscribe(bus EventBus.Bus) error {
	if err := bus.Subscribe(intake.TopicSubmitted, n.OnSubmitted); err != nil {
		return err
	}
	return bus.Subscribe(intake.TopicStatusChanged, n.OnStatusChanged)
}

func (n *IntakeNotifier) OnSubmitted(evt intake.SubmittedEvent) {
	req := evt.Request
	n.dispatcher.Dispatch(Message{
		To:      []string{req.ContactEmail},
		Subject: fmt.Sprintf("%s received (%s)", req.Kind.Label(), shortRef(req.Reference)),
		Body: fmt.Sprintf("Hello %s,\n\nWe have received your %s. Reference: %s.\n"+
			"Current status: %s. We will email you when it changes.\n",
			req.ContactName, strings.ToLower(req.Kind.Label()), req.Reference, req.Status),
	})
	if n.adminAddress == "" {
		return
	}
	n.dispatcher.Dispatch(Message{
		To:      []string{n.adminAddress},
		Subject: fmt.Sprintf("New %s from %s", strings.ToLower(req.Kind.Label()), req.ContactName),
		Body: fmt.Sprintf("Reference: %s\nContact: %s <%s> %s\nDetails: %s\n",
			req.Reference, req.ContactName, req.ContactEmail, req.ContactPhone, formatDetails(req.Details)),
	})
}

func (n *IntakeNotifier) OnStatusChanged(evt intake.StatusChangedEvent) {
	req := evt.Request
	body := fmt.Sprintf("Hello %s,\n\nYour %s %s moved from %s to %s.\n",
		req.ContactName, strings.ToLower(req.Kind.Label()), req.Reference, evt.From, req.Status)
	if req.StatusNote != "" {
		body += "Note: " + req.StatusNote + "\n"
	}
	if req.Status.Terminal() {
		body += "No further updates will be sent for this request.\n"
	}
	n.dispatcher.Dispatch(Message{
		To:      []string{req.ContactEmail},
		Subject: fmt.Sprintf("%s %s: %s", req.Kind.Label(), shortRef(req.Reference), statusTitle(req.Status)),
		Body:    body,
	})
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}

func statusTitle(s domain.IntakeStatus) string {
	return common.TitleCase(string(s))
}

func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, ", ")
}
