package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
)

type membershipReader interface {
	UnitsForStaff(ctx context.Context, userID string) ([]string, error)
	RolesForStaff(ctx context.Context, userID string) ([]string, error)
	ChildrenOfGuardian(ctx context.Context, guardianID string) ([]models.GuardianChild, error)
	PlacementsOfStudent(ctx context.Context, studentID string) ([]models.GuardianChild, error)
}

// FanOutTarget is one entity a broadcast resolves to during fan-out.
type FanOutTarget struct {
	Scope models.VisibilityScope `json:"scope"`
	ID    string                 `json:"id"`
}

// AudienceResolver decides whether a user matches a broadcast's audience
// description. The predicate is side-effect-free and, except for the
// staff unit set, always freshly loaded: guardian links and enrollments
// must not go stale behind a cache.
type AudienceResolver struct {
	memberships membershipReader
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewAudienceResolver constructs the resolver. cache may be nil.
func NewAudienceResolver(memberships membershipReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AudienceResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &AudienceResolver{memberships: memberships, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// UnitsForStaff returns the unit set derived from the staff user's role
// assignments. The lookup is pure per assignment state, so a short TTL
// cache is safe.
func (r *AudienceResolver) UnitsForStaff(ctx context.Context, userID string) ([]string, error) {
	key := fmt.Sprintf("membership:units:%s", userID)
	var units []string
	if hit, err := r.cache.Get(ctx, key, &units); err == nil && hit {
		return units, nil
	}
	units, err := r.memberships.UnitsForStaff(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve staff units")
	}
	if err := r.cache.Set(ctx, key, units, r.cacheTTL); err != nil {
		r.logger.Debug("units cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return units, nil
}

// RolesForStaff returns the role names from the user's assignments.
func (r *AudienceResolver) RolesForStaff(ctx context.Context, userID string) ([]string, error) {
	roles, err := r.memberships.RolesForStaff(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve staff roles")
	}
	return roles, nil
}

// ChildrenOfGuardian resolves the guardian's actively enrolled children.
// Never cached.
func (r *AudienceResolver) ChildrenOfGuardian(ctx context.Context, guardianID string) ([]models.GuardianChild, error) {
	children, err := r.memberships.ChildrenOfGuardian(ctx, guardianID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve guardian children")
	}
	return children, nil
}

// Matches reports whether the user is part of the described audience.
//
// Gates run in order: audience type, staff role, then the hierarchical
// intersection where any of unit/section/student overlap accepts; the
// three checks are independent ORs, not a hierarchy.
func (r *AudienceResolver) Matches(ctx context.Context, user *models.JWTClaims, scope models.AudienceScope) (bool, error) {
	if user == nil || !scope.IncludesAudience(user.UserType) {
		return false, nil
	}

	if user.UserType == models.UserTypeStaff && len(scope.StaffRoles) > 0 {
		roles, err := r.RolesForStaff(ctx, user.UserID)
		if err != nil {
			return false, err
		}
		if !intersects(roles, scope.StaffRoles) {
			return false, nil
		}
	}

	if !scope.HasTargets() {
		return true, nil
	}

	var unitIDs, sectionIDs, studentIDs []string
	switch user.UserType {
	case models.UserTypeStaff:
		units, err := r.UnitsForStaff(ctx, user.UserID)
		if err != nil {
			return false, err
		}
		unitIDs = units
	case models.UserTypeGuardian:
		children, err := r.ChildrenOfGuardian(ctx, user.UserID)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			studentIDs = append(studentIDs, child.StudentID)
			sectionIDs = append(sectionIDs, child.SectionID)
			unitIDs = append(unitIDs, child.UnitID)
		}
	case models.UserTypeStudent:
		placements, err := r.memberships.PlacementsOfStudent(ctx, user.UserID)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student placements")
		}
		for _, p := range placements {
			studentIDs = append(studentIDs, p.StudentID)
			sectionIDs = append(sectionIDs, p.SectionID)
			unitIDs = append(unitIDs, p.UnitID)
		}
	}

	if intersects(scope.UnitIDs, unitIDs) || intersects(scope.SectionIDs, sectionIDs) || intersects(scope.StudentIDs, studentIDs) {
		return true, nil
	}
	return false, nil
}

// FanOutTargets resolves the audience description to concrete fan-out
// entities. Exactly one id list is honored, in student > section > unit
// priority; the lists do not combine.
func (r *AudienceResolver) FanOutTargets(scope models.AudienceScope) []FanOutTarget {
	switch {
	case len(scope.StudentIDs) > 0:
		return makeTargets(models.ScopeStudent, scope.StudentIDs)
	case len(scope.SectionIDs) > 0:
		return makeTargets(models.ScopeSection, scope.SectionIDs)
	case len(scope.UnitIDs) > 0:
		return makeTargets(models.ScopeUnit, scope.UnitIDs)
	}
	return nil
}

func makeTargets(scope models.VisibilityScope, ids []string) []FanOutTarget {
	targets := make([]FanOutTarget, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, FanOutTarget{Scope: scope, ID: id})
	}
	return targets
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
