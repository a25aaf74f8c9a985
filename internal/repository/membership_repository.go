package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
)

// MembershipRepository reads the hierarchy relations owned by other
// modules: staff role assignments and guardian-student links. This
// service never writes them.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository constructs the repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// UnitsForStaff returns the distinct unit ids attached to the staff
// user's role assignments.
func (r *MembershipRepository) UnitsForStaff(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT DISTINCT unit_id FROM role_assignments WHERE user_id = $1`
	var units []string
	if err := r.db.SelectContext(ctx, &units, query, userID); err != nil {
		return nil, fmt.Errorf("units for staff %s: %w", userID, err)
	}
	return units, nil
}

// RolesForStaff returns the distinct role names held by the staff user.
func (r *MembershipRepository) RolesForStaff(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT DISTINCT role FROM role_assignments WHERE user_id = $1`
	var roles []string
	if err := r.db.SelectContext(ctx, &roles, query, userID); err != nil {
		return nil, fmt.Errorf("roles for staff %s: %w", userID, err)
	}
	return roles, nil
}

// ChildrenOfGuardian resolves the guardian's linked students that hold
// an active enrollment, together with each student's current section
// and that section's unit.
func (r *MembershipRepository) ChildrenOfGuardian(ctx context.Context, guardianID string) ([]models.GuardianChild, error) {
	const query = `SELECT gs.student_id, e.section_id, s.unit_id
FROM guardian_students gs
JOIN enrollments e ON e.student_id = gs.student_id AND e.status = $2
JOIN sections s ON s.id = e.section_id
WHERE gs.guardian_id = $1`
	var children []models.GuardianChild
	if err := r.db.SelectContext(ctx, &children, query, guardianID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("children of guardian %s: %w", guardianID, err)
	}
	return children, nil
}

// PlacementsOfStudent resolves a student's own active enrollments to
// (student, section, unit) triples, symmetric to the guardian lookup.
func (r *MembershipRepository) PlacementsOfStudent(ctx context.Context, studentID string) ([]models.GuardianChild, error) {
	const query = `SELECT e.student_id, e.section_id, s.unit_id
FROM enrollments e
JOIN sections s ON s.id = e.section_id
WHERE e.student_id = $1 AND e.status = $2`
	var placements []models.GuardianChild
	if err := r.db.SelectContext(ctx, &placements, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("placements of student %s: %w", studentID, err)
	}
	return placements, nil
}
