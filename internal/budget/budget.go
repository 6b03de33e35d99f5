// ABOUTME: Token budget tracker with period rollover and threshold alerts.
// ABOUTME: Pure in-memory state machine; callers feed it completed-message token counts.

package budget

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Period identifies the window over which usage accumulates.
type Period int

const (
	// PeriodDaily resets at local midnight.
	PeriodDaily Period = iota
	// PeriodWeekly resets Monday 00:00 local time.
	PeriodWeekly
	// PeriodMonthly resets on the first of the month.
	PeriodMonthly
	// PeriodConversation never resets; usage spans the conversation's lifetime.
	PeriodConversation
)

// String returns the config-file name of the period.
func (p Period) String() string {
	switch p {
	case PeriodDaily:
		return "daily"
	case PeriodWeekly:
		return "weekly"
	case PeriodMonthly:
		return "monthly"
	case PeriodConversation:
		return "per-conversation"
	default:
		return fmt.Sprintf("period(%d)", int(p))
	}
}

// ParsePeriod converts a config-file name into a Period.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "daily":
		return PeriodDaily, nil
	case "weekly":
		return PeriodWeekly, nil
	case "monthly":
		return PeriodMonthly, nil
	case "per-conversation", "conversation":
		return PeriodConversation, nil
	default:
		return 0, fmt.Errorf("unknown budget period %q", s)
	}
}

// Severity ranks an alert.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityDanger
	SeverityExceeded
)

// String returns the display name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityDanger:
		return "danger"
	case SeverityExceeded:
		return "exceeded"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Budget is a snapshot of the tracked budget state.
type Budget struct {
	Enabled                 bool
	Period                  Period
	Limit                   int64
	WarningThresholdPercent int
	CurrentUsage            int64
	PeriodStart             time.Time
	PeriodEnd               time.Time
}

// Percentage returns usage as a percentage of the limit, 0 when no limit is set.
func (b Budget) Percentage() float64 {
	if b.Limit <= 0 {
		return 0
	}
	return float64(b.CurrentUsage) / float64(b.Limit) * 100
}

// Alert is a threshold crossing raised during the current period.
type Alert struct {
	ID        string
	Severity  Severity
	Message   string
	Timestamp time.Time
	Dismissed bool
}

// Tracker accumulates token usage and raises alerts. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	budget Budget
	alerts []Alert

	logger *slog.Logger
	now    func() time.Time
}

// NewTracker returns a disabled tracker. Configure enables it.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger.With("component", "budget"),
		now:    time.Now,
	}
}

// Configure enables tracking with the given period, token limit, and warning
// threshold percent. Any prior usage and alerts are discarded and the period
// window restarts from now.
func (t *Tracker) Configure(period Period, limit int64, warningPercent int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	start, end := periodBounds(period, now)
	t.budget = Budget{
		Enabled:                 true,
		Period:                  period,
		Limit:                   limit,
		WarningThresholdPercent: warningPercent,
		PeriodStart:             start,
		PeriodEnd:               end,
	}
	t.alerts = nil

	t.logger.Info("budget configured",
		"period", period.String(),
		"limit", limit,
		"warning_percent", warningPercent,
	)
}

// Disable stops tracking without clearing the recorded usage, so a later
// re-enable within the same period does not under-count.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.budget.Enabled = false
}

// Reset returns the tracker to its initial disabled, empty state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.budget = Budget{}
	t.alerts = nil
}

// Add records token usage from a completed message. Disabled trackers and
// non-positive counts are ignored. If the period has ended, usage and alerts
// reset before the new count lands.
func (t *Tracker) Add(tokens int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.budget.Enabled || tokens <= 0 {
		return
	}

	now := t.now()
	if !t.budget.PeriodEnd.IsZero() && !now.Before(t.budget.PeriodEnd) {
		t.rolloverLocked(now)
	}

	t.budget.CurrentUsage += tokens
	t.evaluateLocked(now)
}

// Budget returns a snapshot of the current budget state.
func (t *Tracker) Budget() Budget {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget
}

// Alerts returns copies of all alerts raised in the current period,
// including dismissed ones, oldest first.
func (t *Tracker) Alerts() []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Alert, len(t.alerts))
	copy(out, t.alerts)
	return out
}

// Dismiss marks the alert with the given id as dismissed. It reports whether
// the alert existed. Dismissal never changes recorded usage.
func (t *Tracker) Dismiss(alertID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.alerts {
		if t.alerts[i].ID == alertID {
			t.alerts[i].Dismissed = true
			return true
		}
	}
	return false
}

// rolloverLocked starts a fresh period. Caller holds mu.
func (t *Tracker) rolloverLocked(now time.Time) {
	start, end := periodBounds(t.budget.Period, now)
	t.budget.CurrentUsage = 0
	t.budget.PeriodStart = start
	t.budget.PeriodEnd = end
	t.alerts = nil

	t.logger.Debug("budget period rolled over",
		"period", t.budget.Period.String(),
		"period_start", start,
		"period_end", end,
	)
}

// evaluateLocked raises at most one alert for the highest matching tier.
// Caller holds mu.
func (t *Tracker) evaluateLocked(now time.Time) {
	if t.budget.Limit <= 0 {
		return
	}

	pct := t.budget.Percentage()

	var severity Severity
	var message string
	switch {
	case pct >= 100:
		severity = SeverityExceeded
		message = fmt.Sprintf("Token budget exceeded: %d of %d tokens used", t.budget.CurrentUsage, t.budget.Limit)
	case pct >= 90:
		severity = SeverityDanger
		message = fmt.Sprintf("Token budget nearly exhausted: %.0f%% of %d tokens used", pct, t.budget.Limit)
	case pct >= float64(t.budget.WarningThresholdPercent):
		severity = SeverityWarning
		message = fmt.Sprintf("Token budget warning: %.0f%% of %d tokens used", pct, t.budget.Limit)
	default:
		return
	}

	// One undismissed alert per severity per period.
	for _, a := range t.alerts {
		if a.Severity == severity && !a.Dismissed {
			return
		}
	}

	alert := Alert{
		ID:        uuid.New().String(),
		Severity:  severity,
		Message:   message,
		Timestamp: now,
	}
	t.alerts = append(t.alerts, alert)

	t.logger.Warn("budget alert raised",
		"severity", severity.String(),
		"usage", t.budget.CurrentUsage,
		"limit", t.budget.Limit,
	)
}

// periodBounds computes the window containing now. Conversation-scoped
// budgets have no end; the zero PeriodEnd means the period never expires.
func periodBounds(p Period, now time.Time) (start, end time.Time) {
	switch p {
	case PeriodDaily:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 0, 1)
	case PeriodWeekly:
		// Weeks start Monday.
		offset := (int(now.Weekday()) + 6) % 7
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		start = day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	case PeriodConversation:
		return now, time.Time{}
	default:
		return now, time.Time{}
	}
}
