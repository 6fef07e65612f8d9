package domain

import (
	"encoding/json"
	"fmt"
)

// PlanType is the subscription plan a config payload entitles.
type PlanType string

const (
	PlanNone PlanType = "none"
	PlanSMS  PlanType = "sms"
)

// ContactFilterMode selects which callers the engine responds to.
type ContactFilterMode string

const (
	FilterAll             ContactFilterMode = "all"
	FilterContactsOnly    ContactFilterMode = "contacts_only"
	FilterNonContactsOnly ContactFilterMode = "non_contacts_only"
)

// WorkingHours restricts evaluation to a same-day time window. Start and
// end hold "HH:mm" strings; bounds are exclusive.
type WorkingHours struct {
	Enabled   bool
	StartTime string
	EndTime   string
}

// ChannelConfig describes the SMS channel: whether it is enabled, which SIM
// slot to send from, and which template answers each call direction.
type ChannelConfig struct {
	Enabled               bool
	SimSlot               int
	TemplateIDByDirection map[CallDirection]int64
}

// RuleSet holds the per-event decision rules of a snapshot.
type RuleSet struct {
	WorkingHours    *WorkingHours
	ExcludedNumbers []string
	UniquePerDay    bool
	ContactFilter   ContactFilterMode
	DelaySeconds    int
	SMS             ChannelConfig
}

// Template is a message body plus an optional attachment path, keyed by id.
type Template struct {
	ID             int64
	Body           string
	AttachmentPath string
}

// RuleSnapshot is an immutable configuration value. It is replaced
// wholesale on every successful config update; readers never observe a
// partially applied snapshot.
type RuleSnapshot struct {
	Rules               *RuleSet
	BusinessName        string
	LandingURL          string
	AppendURLToMessage  bool
	Plan                PlanType
	PlanExpiresAtMillis int64

	// Templates indexed by their id, rebuilt wholesale with the snapshot.
	Templates map[int64]Template
}

// TemplateByID resolves a template id; ids that are absent or non-positive
// resolve to no template.
func (s *RuleSnapshot) TemplateByID(id int64) (Template, bool) {
	if id <= 0 {
		return Template{}, false
	}
	t, ok := s.Templates[id]
	return t, ok
}

// Wire representation of the configuration payload. Every field is
// optional; absence falls back to a documented default.
type snapshotPayload struct {
	Rules                 *rulesPayload     `json:"rules"`
	BusinessName          string            `json:"business_name"`
	LandingURL            string            `json:"landing_url"`
	AppendWebsiteURLToSMS bool              `json:"append_website_url_to_sms"`
	Plan                  string            `json:"plan"`
	PlanExpiresAt         int64             `json:"plan_expires_at"`
	Templates             []templatePayload `json:"templates"`
}

type rulesPayload struct {
	WorkingHours    *workingHoursPayload  `json:"working_hours"`
	ExcludedNumbers []string              `json:"excluded_numbers"`
	UniquePerDay    *bool                 `json:"unique_per_day"`
	ContactFilter   *contactFilterPayload `json:"contact_filter"`
	DelaySeconds    int                   `json:"delay_seconds"`
	SMS             *smsChannelPayload    `json:"sms"`
	SMSSimSlot      int                   `json:"sms_sim_slot"`
}

type workingHoursPayload struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type contactFilterPayload struct {
	Mode string `json:"mode"`
}

type smsChannelPayload struct {
	Enabled            bool  `json:"enabled"`
	IncomingTemplateID int64 `json:"incoming_template_id"`
	OutgoingTemplateID int64 `json:"outgoing_template_id"`
	MissedTemplateID   int64 `json:"missed_template_id"`
}

type templatePayload struct {
	ID        int64   `json:"id"`
	Body      string  `json:"body"`
	ImagePath *string `json:"image_path"`
}

// ParseSnapshot parses a raw configuration payload into a fully-formed
// RuleSnapshot. A malformed payload returns an error and no snapshot, so
// the caller can keep its last known good configuration.
func ParseSnapshot(raw []byte) (*RuleSnapshot, error) {
	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}

	snap := &RuleSnapshot{
		BusinessName:        payload.BusinessName,
		LandingURL:          payload.LandingURL,
		AppendURLToMessage:  payload.AppendWebsiteURLToSMS,
		Plan:                parsePlan(payload.Plan),
		PlanExpiresAtMillis: payload.PlanExpiresAt,
		Templates:           make(map[int64]Template, len(payload.Templates)),
	}

	for _, t := range payload.Templates {
		if t.ID <= 0 || t.Body == "" {
			continue
		}
		tmpl := Template{ID: t.ID, Body: t.Body}
		if t.ImagePath != nil {
			tmpl.AttachmentPath = *t.ImagePath
		}
		snap.Templates[t.ID] = tmpl
	}

	if payload.Rules != nil {
		snap.Rules = parseRules(payload.Rules)
	}

	return snap, nil
}

func parsePlan(plan string) PlanType {
	switch PlanType(plan) {
	case PlanSMS:
		return PlanSMS
	default:
		return PlanNone
	}
}

func parseRules(p *rulesPayload) *RuleSet {
	rules := &RuleSet{
		ExcludedNumbers: p.ExcludedNumbers,
		UniquePerDay:    true,
		ContactFilter:   FilterAll,
		DelaySeconds:    p.DelaySeconds,
	}

	if p.UniquePerDay != nil {
		rules.UniquePerDay = *p.UniquePerDay
	}

	if p.ContactFilter != nil {
		switch ContactFilterMode(p.ContactFilter.Mode) {
		case FilterContactsOnly:
			rules.ContactFilter = FilterContactsOnly
		case FilterNonContactsOnly:
			rules.ContactFilter = FilterNonContactsOnly
		}
	}

	if p.WorkingHours != nil {
		wh := &WorkingHours{
			Enabled:   p.WorkingHours.Enabled,
			StartTime: p.WorkingHours.StartTime,
			EndTime:   p.WorkingHours.EndTime,
		}
		if wh.StartTime == "" {
			wh.StartTime = "09:00"
		}
		if wh.EndTime == "" {
			wh.EndTime = "18:00"
		}
		rules.WorkingHours = wh
	}

	if p.SMS != nil {
		rules.SMS = ChannelConfig{
			Enabled: p.SMS.Enabled,
			SimSlot: p.SMSSimSlot,
			TemplateIDByDirection: map[CallDirection]int64{
				DirectionIncoming: p.SMS.IncomingTemplateID,
				DirectionOutgoing: p.SMS.OutgoingTemplateID,
				DirectionMissed:   p.SMS.MissedTemplateID,
			},
		}
	}

	return rules
}
