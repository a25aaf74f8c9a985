package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BroadcastKind distinguishes announcements from memos.
type BroadcastKind string

const (
	KindAnnouncement BroadcastKind = "ANNOUNCEMENT"
	KindMemo         BroadcastKind = "MEMO"
)

// ValidBroadcastKind reports whether the kind value is known.
func ValidBroadcastKind(k BroadcastKind) bool {
	return k == KindAnnouncement || k == KindMemo
}

// AudienceScope is the structured audience description attached to a
// broadcast. Stored as JSONB; validated at construction, never treated
// as an open map.
type AudienceScope struct {
	Audience   []UserType `json:"audience"`
	StaffRoles []string   `json:"staff_roles,omitempty"`
	UnitIDs    []string   `json:"unit_ids,omitempty"`
	SectionIDs []string   `json:"section_ids,omitempty"`
	StudentIDs []string   `json:"student_ids,omitempty"`
}

// Value implements driver.Valuer.
func (s AudienceScope) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *AudienceScope) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported scope type %T", src)
	}
	return json.Unmarshal(raw, s)
}

// IncludesAudience reports whether the given user type is addressed.
func (s AudienceScope) IncludesAudience(t UserType) bool {
	for _, a := range s.Audience {
		if a == t {
			return true
		}
	}
	return false
}

// HasTargets reports whether any unit/section/student identifier is set.
// A scope with none is unrestricted within its audience types.
func (s AudienceScope) HasTargets() bool {
	return len(s.UnitIDs) > 0 || len(s.SectionIDs) > 0 || len(s.StudentIDs) > 0
}

// TargetListCount counts how many of the three id lists are populated.
// More than one is ambiguous under the exclusive fan-out priority.
func (s AudienceScope) TargetListCount() int {
	n := 0
	if len(s.StudentIDs) > 0 {
		n++
	}
	if len(s.SectionIDs) > 0 {
		n++
	}
	if len(s.UnitIDs) > 0 {
		n++
	}
	return n
}

// Broadcast unifies announcements and memos: a communication with a
// flexible audience description and scheduled publication. published_at
// is stamped exactly once, atomically with the fan-out.
type Broadcast struct {
	ID          string        `db:"id" json:"id"`
	Kind        BroadcastKind `db:"kind" json:"kind"`
	UnitID      *string       `db:"unit_id" json:"unit_id,omitempty"`
	TitleAr     string        `db:"title_ar" json:"title_ar"`
	TitleEn     string        `db:"title_en" json:"title_en"`
	BodyAr      string        `db:"body_ar" json:"body_ar"`
	BodyEn      string        `db:"body_en" json:"body_en"`
	Scope       AudienceScope `db:"scope" json:"scope"`
	PublishAt   time.Time     `db:"publish_at" json:"publish_at"`
	PublishedAt *time.Time    `db:"published_at" json:"published_at,omitempty"`
	AckRequired bool          `db:"ack_required" json:"ack_required"`
	CreatorID   string        `db:"creator_id" json:"creator_id"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// Published reports whether fan-out has occurred.
func (b *Broadcast) Published() bool {
	return b.PublishedAt != nil
}

// BroadcastWithAck decorates a memo with the caller's acknowledgement state.
type BroadcastWithAck struct {
	Broadcast
	IsAcknowledged bool `json:"is_acknowledged"`
}

// BroadcastFilter narrows broadcast listings.
type BroadcastFilter struct {
	Kind          BroadcastKind
	PublishedOnly bool
}
