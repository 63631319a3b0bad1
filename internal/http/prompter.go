package http

import (
	"context"

	"expensetracker/internal/tracker"
)

// formPrompter answers the tracker's dialogs from one request. The browser
// has already shown the confirmation dialog, so Confirm reports the answer it
// posted; alerts and form resets become HX-Trigger events on the response.
type formPrompter struct {
	confirmed bool
	resp      *HTMXResponseBuilder
}

var _ tracker.Prompter = (*formPrompter)(nil)

func newFormPrompter(confirmed bool, resp *HTMXResponseBuilder) *formPrompter {
	return &formPrompter{confirmed: confirmed, resp: resp}
}

func (p *formPrompter) Confirm(ctx context.Context, message string) bool {
	return p.confirmed
}

func (p *formPrompter) Alert(ctx context.Context, message string) {
	p.resp.TriggerNotification(NotificationWarning, message, 5000)
}

func (p *formPrompter) ResetExpenseForm(ctx context.Context) {
	p.resp.TriggerFormReset()
}
