package telegram

import (
	"encoding/json"
	"skillsetu/backend/internal/localization"
	"skillsetu/backend/internal/models"
)

const timeLayout = "2006-01-02 15:04 UTC"

// FormatNotice renders a lifecycle notification as chat text. Payloads from
// other instances arrive as raw JSON.
func FormatNotice(l *localization.Localizer, lang, event string, payload any) string {
	notice, ok := decodeNotice(payload)
	if !ok {
		return l.GetString(lang, "notify.unknown")
	}
	when := notice.ScheduledAt.UTC().Format(timeLayout)

	switch event {
	case models.EventSessionRequested:
		return l.Format(lang, "notify.session_requested", notice.Skill, when)
	case models.EventSessionAccepted:
		return l.Format(lang, "notify.session_accepted", notice.Skill, when)
	case models.EventSessionRescheduled:
		return l.Format(lang, "notify.session_rescheduled", notice.Skill, when)
	case models.EventSessionMarked:
		status := l.GetString(lang, "status."+string(notice.Status))
		if notice.ChatBlocked {
			return l.Format(lang, "notify.session_marked_closed", notice.Skill, status)
		}
		return l.Format(lang, "notify.session_marked", notice.Skill, status)
	}
	return l.GetString(lang, "notify.unknown")
}

func decodeNotice(payload any) (models.SessionNotice, bool) {
	switch p := payload.(type) {
	case models.SessionNotice:
		return p, true
	case *models.SessionNotice:
		return *p, p != nil
	case json.RawMessage:
		var n models.SessionNotice
		if err := json.Unmarshal(p, &n); err != nil {
			return models.SessionNotice{}, false
		}
		return n, true
	}
	return models.SessionNotice{}, false
}
