package models

// EnrollmentStatus mirrors the enrollment lifecycle owned by the
// registration module; this service only reads ACTIVE rows.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// RoleAssignment binds a staff user to a role within one unit.
type RoleAssignment struct {
	UserID string `db:"user_id" json:"user_id"`
	Role   string `db:"role" json:"role"`
	UnitID string `db:"unit_id" json:"unit_id"`
}

// GuardianChild is a linked student with an active enrollment, resolved
// together with the section and its unit. Always loaded fresh; caching
// here would go stale on enrollment changes.
type GuardianChild struct {
	StudentID string `db:"student_id" json:"student_id"`
	SectionID string `db:"section_id" json:"section_id"`
	UnitID    string `db:"unit_id" json:"unit_id"`
}
