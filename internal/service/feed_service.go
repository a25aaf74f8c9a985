package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
)

type feedEventLister interface {
	ListFeed(ctx context.Context, q models.FeedQuery) ([]models.TimelineEvent, error)
}

// FeedService builds the per-role visibility predicate and streams the
// caller's activity feed with cursor pagination.
type FeedService struct {
	events          feedEventLister
	resolver        *AudienceResolver
	defaultPageSize int
	maxPageSize     int
	metrics         *MetricsService
	logger          *zap.Logger
}

// NewFeedService constructs the feed engine.
func NewFeedService(events feedEventLister, resolver *AudienceResolver, defaultPageSize, maxPageSize int, metrics *MetricsService, logger *zap.Logger) *FeedService {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedService{
		events:          events,
		resolver:        resolver,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		metrics:         metrics,
		logger:          logger,
	}
}

// FeedRequest carries the caller's filters.
type FeedRequest struct {
	EventType      string
	DateFrom       *time.Time
	DateTo         *time.Time
	ChildStudentID string
	Limit          int
	Cursor         string
}

// Feed returns one page of the caller's feed, ordered by
// (created_at DESC, id DESC). Cursors are safe against concurrent
// inserts: a page boundary never skips or repeats an item relative to
// that ordering key.
func (s *FeedService) Feed(ctx context.Context, user *models.JWTClaims, req FeedRequest) (*models.FeedPage, error) {
	if user == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var after *models.FeedCursor
	if req.Cursor != "" {
		decoded, err := models.DecodeFeedCursor(req.Cursor)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cursor")
		}
		after = decoded
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	query := models.FeedQuery{
		Viewer:    user.UserType,
		EventType: req.EventType,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Limit:     limit + 1,
		After:     after,
	}

	start := time.Now()
	switch user.UserType {
	case models.UserTypeStaff:
		if err := s.buildStaffQuery(ctx, user, &query); err != nil {
			return nil, err
		}
	case models.UserTypeGuardian:
		if err := s.buildGuardianQuery(ctx, user, req.ChildStudentID, &query); err != nil {
			return nil, err
		}
	default:
		// Student feeds are reserved: an empty page, not an error.
		return &models.FeedPage{Items: []models.FeedItem{}}, nil
	}

	events, err := s.events.ListFeed(ctx, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query feed")
	}
	s.metrics.ObserveFeedQuery(user.UserType, after != nil, time.Since(start))

	page := &models.FeedPage{Items: make([]models.FeedItem, 0, len(events))}
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	for _, event := range events {
		page.Items = append(page.Items, models.FeedItem{
			ID:        event.ID,
			CreatedAt: event.CreatedAt,
			EventType: event.EventType,
			TitleAr:   event.TitleAr,
			TitleEn:   event.TitleEn,
			BodyAr:    event.BodyAr,
			BodyEn:    event.BodyEn,
			Payload:   event.Payload,
		})
	}
	if hasMore && len(events) > 0 {
		last := events[len(events)-1]
		page.NextCursor = models.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return page, nil
}

func (s *FeedService) buildStaffQuery(ctx context.Context, user *models.JWTClaims, query *models.FeedQuery) error {
	roles, err := s.resolver.RolesForStaff(ctx, user.UserID)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if role == models.RoleSuperAdmin {
			query.Unrestricted = true
			return nil
		}
	}
	units, err := s.resolver.UnitsForStaff(ctx, user.UserID)
	if err != nil {
		return err
	}
	query.UnitIDs = units
	query.RoleNames = roles
	return nil
}

func (s *FeedService) buildGuardianQuery(ctx context.Context, user *models.JWTClaims, childStudentID string, query *models.FeedQuery) error {
	children, err := s.resolver.ChildrenOfGuardian(ctx, user.UserID)
	if err != nil {
		return err
	}
	if childStudentID != "" {
		// The caller asserted a specific student id: an unlinked child is
		// a denial, not a silently empty feed.
		var matched *models.GuardianChild
		for i := range children {
			if children[i].StudentID == childStudentID {
				matched = &children[i]
				break
			}
		}
		if matched == nil {
			return appErrors.Clone(appErrors.ErrForbidden, "student is not linked to this guardian")
		}
		children = []models.GuardianChild{*matched}
	}
	for _, child := range children {
		query.StudentIDs = append(query.StudentIDs, child.StudentID)
		query.SectionIDs = append(query.SectionIDs, child.SectionID)
		query.UnitIDs = append(query.UnitIDs, child.UnitID)
	}
	return nil
}
