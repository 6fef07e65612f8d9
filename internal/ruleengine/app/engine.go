package app

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	contactsdomain "github.com/callflow/engine/internal/contacts/domain"
	"github.com/callflow/engine/internal/ruleengine/domain"
	"github.com/callflow/engine/internal/ruleengine/repository"
)

const dayKeyLayout = "2006-01-02"

// RuleEngine holds the active rule snapshot, the template store, and the
// day-scoped dedup ledger, all guarded by one reader/writer lock. Evaluate
// runs under the write lock for its whole duration because it may commit a
// ledger entry; evaluation is cheap, so serializing it is an acceptable
// cost for duplicate-free marking.
type RuleEngine struct {
	mu sync.RWMutex

	snap *domain.RuleSnapshot

	// In-memory view of today's dedup ledger; resynced from the
	// repository on every touch.
	sentToday     map[string]struct{}
	sentTodayDate string

	ledgerRepo   repository.LedgerRepository
	snapshotRepo repository.SnapshotRepository
	contacts     contactsdomain.Directory
	logger       *slog.Logger

	now func() time.Time
}

// NewRuleEngine creates a new RuleEngine. The engine starts with no
// snapshot; call Restore to warm-start from persisted configuration.
func NewRuleEngine(
	ledgerRepo repository.LedgerRepository,
	snapshotRepo repository.SnapshotRepository,
	contacts contactsdomain.Directory,
	logger *slog.Logger,
) *RuleEngine {
	return &RuleEngine{
		sentToday:    make(map[string]struct{}),
		ledgerRepo:   ledgerRepo,
		snapshotRepo: snapshotRepo,
		contacts:     contacts,
		logger:       logger.With("component", "rule_engine"),
		now:          time.Now,
	}
}

// Restore loads the last known good configuration payload from local
// storage and applies it. A missing or unparseable payload leaves the
// engine without a snapshot; events are then rejected with "no rule
// config" until the next remote push.
func (e *RuleEngine) Restore(ctx context.Context) {
	raw, err := e.snapshotRepo.Load(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to load persisted config snapshot", "error", err)
		return
	}
	if raw == nil {
		e.logger.InfoContext(ctx, "No persisted config snapshot; waiting for remote config push")
		return
	}

	snap, err := domain.ParseSnapshot(raw)
	if err != nil {
		e.logger.WarnContext(ctx, "Persisted config snapshot failed to parse; discarding", "error", err)
		return
	}

	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()
	e.logger.InfoContext(ctx, "Restored config snapshot from local storage",
		"plan", snap.Plan, "templates", len(snap.Templates))
}

// UpdateConfig parses a raw configuration payload and, on success,
// atomically replaces the active snapshot and template store, then
// persists the payload as the new last known good. A parse failure leaves
// all state untouched.
func (e *RuleEngine) UpdateConfig(ctx context.Context, raw []byte) error {
	snap, err := domain.ParseSnapshot(raw)
	if err != nil {
		configUpdatesCounter.WithLabelValues("rejected").Inc()
		e.logger.ErrorContext(ctx, "Rejected config update; previous snapshot retained", "error", err)
		return err
	}

	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()

	if err := e.snapshotRepo.Save(ctx, raw); err != nil {
		e.logger.WarnContext(ctx, "Failed to persist config snapshot", "error", err)
	}

	configUpdatesCounter.WithLabelValues("applied").Inc()
	e.logger.InfoContext(ctx, "Rule config updated",
		"plan", snap.Plan,
		"templates", len(snap.Templates),
		"sms_enabled", snap.Rules != nil && snap.Rules.SMS.Enabled)
	return nil
}

// BusinessName returns the configured business name.
func (e *RuleEngine) BusinessName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snap == nil {
		return ""
	}
	return e.snap.BusinessName
}

// LandingURL returns the configured landing page URL.
func (e *RuleEngine) LandingURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snap == nil {
		return ""
	}
	return e.snap.LandingURL
}

// ShouldAppendURL reports whether the landing URL is appended to outbound
// messages.
func (e *RuleEngine) ShouldAppendURL() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snap == nil {
		return false
	}
	return e.snap.AppendURLToMessage
}

// Evaluate runs the decision pipeline for one call event. Stages
// short-circuit in order; once a stage rejects, later stages do not run.
// When the event is accepted, the dedup ledger entry is committed before
// returning, so the daily slot is spent even if the later dispatch fails.
func (e *RuleEngine) Evaluate(ctx context.Context, event domain.CallEvent) domain.Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()

	// 1. Snapshot presence.
	if e.snap == nil || e.snap.Rules == nil {
		return domain.Rejected(domain.ReasonNoRuleConfig)
	}
	snap := e.snap
	rules := snap.Rules

	// 2. Plan validity.
	if snap.Plan == domain.PlanNone {
		return domain.Rejected(domain.ReasonNoActivePlan)
	}
	if snap.PlanExpiresAtMillis > 0 && now.UnixMilli() > snap.PlanExpiresAtMillis {
		return domain.Rejected(domain.ReasonPlanExpired)
	}

	// 3. Working hours (exclusive bounds; unparseable times are permissive).
	if wh := rules.WorkingHours; wh != nil && wh.Enabled {
		if !e.withinWorkingHours(ctx, wh, now) {
			return domain.Rejected(domain.ReasonOutsideWorkingHours)
		}
	}

	// 4. Excluded numbers: suffix match on digit-stripped values. An
	// excluded local number also blocks longer numbers sharing its
	// suffix; reproduced from the source rules as-is.
	eventDigits := domain.DigitsOnly(event.Phone)
	for _, excluded := range rules.ExcludedNumbers {
		excludedDigits := domain.DigitsOnly(excluded)
		if excludedDigits != "" && strings.HasSuffix(eventDigits, excludedDigits) {
			return domain.Rejected(domain.ReasonNumberExcluded)
		}
	}

	// 5. Unique per day.
	if rules.UniquePerDay {
		e.syncSentTodayLocked(ctx, now.Format(dayKeyLayout))
		normalized := domain.NormalizePhone(event.Phone)
		if normalized != "" {
			if _, seen := e.sentToday[normalized]; seen {
				return domain.Rejected(domain.ReasonAlreadyMessagedToday)
			}
		}
	}

	// 6. Contact filter.
	if mode := rules.ContactFilter; mode != domain.FilterAll {
		isContact, err := e.contacts.IsContact(ctx, event.Phone)
		if err != nil {
			e.logger.WarnContext(ctx, "Contact lookup failed; treating caller as non-contact",
				"error", err, "event_id", event.EventID)
			isContact = false
		}
		if mode == domain.FilterContactsOnly && !isContact {
			return domain.Rejected(domain.ReasonNonContactFiltered)
		}
		if mode == domain.FilterNonContactsOnly && isContact {
			return domain.Rejected(domain.ReasonContactFiltered)
		}
	}

	// 7. Channel selection.
	var template *domain.Template
	if rules.SMS.Enabled && snap.Plan == domain.PlanSMS {
		if id, ok := rules.SMS.TemplateIDByDirection[event.Direction]; ok {
			if t, found := snap.TemplateByID(id); found {
				template = &t
			}
		}
	}
	if template == nil {
		return domain.Rejected(domain.ReasonNoChannelForDirection(domain.ChannelSMS, event.Direction))
	}

	// Commit the ledger entry before dispatch is scheduled: dedup must
	// hold even if the send later fails.
	e.markSentLocked(ctx, event.Phone, now.Format(dayKeyLayout))

	return domain.Evaluation{
		Accepted:     true,
		SendSMS:      true,
		Template:     template,
		SimSlot:      rules.SMS.SimSlot,
		DelaySeconds: rules.DelaySeconds,
	}
}

func (e *RuleEngine) withinWorkingHours(ctx context.Context, wh *domain.WorkingHours, now time.Time) bool {
	start, errStart := time.Parse("15:04", wh.StartTime)
	end, errEnd := time.Parse("15:04", wh.EndTime)
	if errStart != nil || errEnd != nil {
		e.logger.WarnContext(ctx, "Unparseable working hours; gate is permissive",
			"start_time", wh.StartTime, "end_time", wh.EndTime)
		return true
	}

	y, m, d := now.Date()
	startToday := time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, now.Location())
	endToday := time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, now.Location())

	return now.After(startToday) && now.Before(endToday)
}

// syncSentTodayLocked resynchronizes the in-memory ledger with the on-day
// persisted state; the ledger may be written by another engine instance
// sharing the state database. On the first touch of a new day the ledger
// is cleared and an empty set is persisted under the new day key. Storage
// failures degrade to an empty ledger (fail open on dedup). Must be called
// with the write lock held.
func (e *RuleEngine) syncSentTodayLocked(ctx context.Context, today string) {
	storedDay, numbers, err := e.ledgerRepo.Load(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to load day ledger; treating as empty", "error", err)
		e.sentToday = make(map[string]struct{})
		e.sentTodayDate = today
		return
	}

	if storedDay != today {
		e.sentToday = make(map[string]struct{})
		e.sentTodayDate = today
		if err := e.ledgerRepo.Save(ctx, today, nil); err != nil {
			e.logger.WarnContext(ctx, "Failed to persist day ledger rollover", "error", err, "day", today)
		}
		return
	}

	e.sentToday = make(map[string]struct{}, len(numbers))
	for _, number := range numbers {
		if normalized := domain.NormalizePhone(number); normalized != "" {
			e.sentToday[normalized] = struct{}{}
		}
	}
	e.sentTodayDate = today
}

// markSentLocked records the phone in today's ledger and persists the full
// set. Must be called with the write lock held.
func (e *RuleEngine) markSentLocked(ctx context.Context, phone string, today string) {
	e.syncSentTodayLocked(ctx, today)

	normalized := domain.NormalizePhone(phone)
	if normalized == "" {
		return
	}
	e.sentToday[normalized] = struct{}{}

	numbers := make([]string, 0, len(e.sentToday))
	for number := range e.sentToday {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	if err := e.ledgerRepo.Save(ctx, e.sentTodayDate, numbers); err != nil {
		e.logger.WarnContext(ctx, "Failed to persist day ledger", "error", err, "day", e.sentTodayDate)
	}
}
