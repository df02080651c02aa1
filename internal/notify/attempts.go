package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// AttemptNotifier implements domain.AttemptNotifier. Partial attempts alert
// operators about which venues hold unresolved legs and may have residual
// locked balance until open orders are cancelled; Completed and Failed
// attempts report the realized outcome.
type AttemptNotifier struct {
	notifier *Notifier
}

// NewAttemptNotifier wraps a Notifier.
func NewAttemptNotifier(n *Notifier) *AttemptNotifier {
	return &AttemptNotifier{notifier: n}
}

// NotifyPartial alerts on an attempt that ended Partial. Send failures are
// logged by the Notifier; a dead channel never blocks execution.
func (r *AttemptNotifier) NotifyPartial(ctx context.Context, attempt domain.ExecutionAttempt, unresolved []domain.LegResult) {
	var b strings.Builder
	fmt.Fprintf(&b, "Attempt %s (%s) ended PARTIAL with realized P&L $%.2f.\n",
		attempt.ID, attempt.Kind, attempt.RealizedNetProfitUSD)
	b.WriteString("Unresolved legs needing balance recovery:\n")
	for _, leg := range unresolved {
		fmt.Fprintf(&b, "- %s %s on %s (%s)", leg.Side, leg.Symbol, leg.Venue, leg.Status)
		if leg.Error != "" {
			fmt.Fprintf(&b, ": %s", leg.Error)
		}
		b.WriteString("\n")
	}

	_ = r.notifier.Notify(ctx, EventPartialFill, "Partial fill detected", b.String())
}

// NotifyOutcome reports a Completed or Failed attempt. Partial attempts go
// through NotifyPartial instead, so an attempt never produces two alerts.
func (r *AttemptNotifier) NotifyOutcome(ctx context.Context, attempt domain.ExecutionAttempt) {
	event := EventAttemptCompleted
	title := "Attempt completed"
	if attempt.Outcome == domain.OutcomeFailed {
		event = EventAttemptFailed
		title = "Attempt failed"
	}

	msg := fmt.Sprintf("Attempt %s (%s) on %s ended %s with realized P&L $%.2f.",
		attempt.ID, attempt.Kind, strings.Join(attempt.Symbols, ", "),
		strings.ToUpper(string(attempt.Outcome)), attempt.RealizedNetProfitUSD)
	_ = r.notifier.Notify(ctx, event, title, msg)
}

var _ domain.AttemptNotifier = (*AttemptNotifier)(nil)
