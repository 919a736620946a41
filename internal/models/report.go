package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportReason string

const (
	ReasonSpam          ReportReason = "spam"
	ReasonHarassment    ReportReason = "harassment"
	ReasonInappropriate ReportReason = "inappropriate"
	ReasonOther         ReportReason = "other"
)

// ReportStatusNew is the only status this service writes; later statuses
// belong to the moderation pipeline.
const ReportStatusNew = "new"

// ParseReportReason accepts both the enum values and the labels shown in the
// web client ("Inappropriate Behavior").
func ParseReportReason(raw string) (ReportReason, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "spam":
		return ReasonSpam, nil
	case "harassment":
		return ReasonHarassment, nil
	case "inappropriate", "inappropriate behavior", "inappropriate behaviour":
		return ReasonInappropriate, nil
	case "other":
		return ReasonOther, nil
	}
	return "", ErrInvalidReportReason
}

// Report is an abuse report filed by one participant against the other.
type Report struct {
	ID            string       `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID     string       `gorm:"type:uuid;not null;index" json:"session_id"`
	ReporterID    string       `gorm:"type:text;not null" json:"reporter_id"`
	TargetID      string       `gorm:"type:text;not null;index" json:"target_id"`
	Reason        ReportReason `gorm:"type:text;not null" json:"reason"`
	Description   string       `gorm:"type:text" json:"description"`
	AttachmentRef string       `gorm:"type:text" json:"attachment_ref,omitempty"`
	Status        string       `gorm:"type:text;not null" json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = ReportStatusNew
	}
	return
}
