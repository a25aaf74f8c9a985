package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// VisibilityScope declares which identifier pins a timeline event.
type VisibilityScope string

const (
	ScopeUnit          VisibilityScope = "UNIT"
	ScopeSection       VisibilityScope = "SECTION"
	ScopeStudent       VisibilityScope = "STUDENT"
	ScopeStaffOnly     VisibilityScope = "STAFF_ONLY"
	ScopeGuardiansOnly VisibilityScope = "GUARDIANS_ONLY"
	ScopeStudentsOnly  VisibilityScope = "STUDENTS_ONLY"
	ScopeCustom        VisibilityScope = "CUSTOM"
)

// ValidVisibilityScope reports whether the scope value is known.
func ValidVisibilityScope(s VisibilityScope) bool {
	switch s {
	case ScopeUnit, ScopeSection, ScopeStudent, ScopeStaffOnly, ScopeGuardiansOnly, ScopeStudentsOnly, ScopeCustom:
		return true
	}
	return false
}

// JSONMap stores an arbitrary key-value payload as JSONB.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported payload type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// TimelineEvent is an immutable activity feed fact. Rows are created by
// the emitter and never mutated or deleted by this service.
type TimelineEvent struct {
	ID            string          `db:"id" json:"id"`
	UnitID        *string         `db:"unit_id" json:"unit_id,omitempty"`
	SectionID     *string         `db:"section_id" json:"section_id,omitempty"`
	StudentID     *string         `db:"student_id" json:"student_id,omitempty"`
	ActorID       *string         `db:"actor_id" json:"actor_id,omitempty"`
	EventType     string          `db:"event_type" json:"event_type"`
	TitleAr       string          `db:"title_ar" json:"title_ar"`
	TitleEn       string          `db:"title_en" json:"title_en"`
	BodyAr        *string         `db:"body_ar" json:"body_ar,omitempty"`
	BodyEn        *string         `db:"body_en" json:"body_en,omitempty"`
	Payload       JSONMap         `db:"payload" json:"payload,omitempty"`
	Scope         VisibilityScope `db:"visibility_scope" json:"visibility_scope"`
	AudienceRoles pq.StringArray  `db:"audience_roles" json:"audience_roles,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ScopeSatisfied reports whether the identifier required by the declared
// visibility scope is present. Scopes outside the three identifier-backed
// ones carry no mandatory identifier.
func (e *TimelineEvent) ScopeSatisfied() bool {
	switch e.Scope {
	case ScopeUnit:
		return e.UnitID != nil && *e.UnitID != ""
	case ScopeSection:
		return e.SectionID != nil && *e.SectionID != ""
	case ScopeStudent:
		return e.StudentID != nil && *e.StudentID != ""
	}
	return true
}

// FeedQuery carries the role-resolved visibility sets plus the common
// filters applied on top of them.
type FeedQuery struct {
	Viewer       UserType
	Unrestricted bool
	UnitIDs      []string
	SectionIDs   []string
	StudentIDs   []string
	RoleNames    []string

	EventType string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	After     *FeedCursor
}
