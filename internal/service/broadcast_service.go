package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
)

type broadcastStore interface {
	Create(ctx context.Context, broadcast *models.Broadcast) error
	FindByID(ctx context.Context, id string) (*models.Broadcast, error)
	ListPublished(ctx context.Context, filter models.BroadcastFilter) ([]models.Broadcast, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Broadcast, error)
	PublishWithEvents(ctx context.Context, id string, publishedAt time.Time, events []*models.TimelineEvent) (bool, error)
}

type acknowledgementStore interface {
	Upsert(ctx context.Context, broadcastID, userID string, at time.Time) (*models.Acknowledgement, error)
	AcknowledgedSet(ctx context.Context, userID string, broadcastIDs []string) (map[string]bool, error)
	ListByBroadcast(ctx context.Context, broadcastID string) ([]models.Acknowledgement, error)
}

// BroadcastService manages scheduled and immediate publication of
// announcements and memos, their audience-filtered listings and memo
// acknowledgements.
type BroadcastService struct {
	repo        broadcastStore
	acks        acknowledgementStore
	resolver    *AudienceResolver
	notifier    Notifier
	validator   *validator.Validate
	strictScope bool
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewBroadcastService constructs the publisher.
func NewBroadcastService(repo broadcastStore, acks acknowledgementStore, resolver *AudienceResolver, notifier Notifier, validate *validator.Validate, strictScope bool, metrics *MetricsService, logger *zap.Logger) *BroadcastService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &BroadcastService{
		repo:        repo,
		acks:        acks,
		resolver:    resolver,
		notifier:    notifier,
		validator:   validate,
		strictScope: strictScope,
		metrics:     metrics,
		logger:      logger,
	}
	_ = svc.validator.RegisterValidation("broadcast_kind", func(fl validator.FieldLevel) bool {
		return models.ValidBroadcastKind(models.BroadcastKind(fl.Field().String()))
	})
	return svc
}

// CreateBroadcastRequest describes the producer payload.
type CreateBroadcastRequest struct {
	Kind        string               `json:"kind" validate:"required,broadcast_kind"`
	UnitID      *string              `json:"unit_id"`
	TitleAr     string               `json:"title_ar" validate:"required"`
	TitleEn     string               `json:"title_en" validate:"required"`
	BodyAr      string               `json:"body_ar" validate:"required"`
	BodyEn      string               `json:"body_en" validate:"required"`
	Scope       models.AudienceScope `json:"scope"`
	PublishAt   *time.Time           `json:"publish_at"`
	AckRequired bool                 `json:"ack_required"`
}

// Create registers a broadcast and, when its publish time is not in the
// future, performs the fan-out immediately. Future publish times are
// left for the periodic sweep.
func (s *BroadcastService) Create(ctx context.Context, req CreateBroadcastRequest, creator *models.JWTClaims) (*models.Broadcast, error) {
	if creator == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid broadcast payload")
	}
	if err := s.validateScope(req.Scope); err != nil {
		return nil, err
	}
	kind := models.BroadcastKind(req.Kind)
	if req.AckRequired && kind != models.KindMemo {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ack_required applies to memos only")
	}

	now := time.Now().UTC()
	publishAt := now
	if req.PublishAt != nil {
		publishAt = req.PublishAt.UTC()
	}

	broadcast := &models.Broadcast{
		Kind:        kind,
		UnitID:      req.UnitID,
		TitleAr:     req.TitleAr,
		TitleEn:     req.TitleEn,
		BodyAr:      req.BodyAr,
		BodyEn:      req.BodyEn,
		Scope:       req.Scope,
		PublishAt:   publishAt,
		AckRequired: req.AckRequired,
		CreatorID:   creator.UserID,
	}
	if err := s.repo.Create(ctx, broadcast); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create broadcast")
	}

	if !publishAt.After(now) {
		if err := s.Publish(ctx, broadcast); err != nil {
			return nil, err
		}
	}
	return broadcast, nil
}

func (s *BroadcastService) validateScope(scope models.AudienceScope) error {
	if len(scope.Audience) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "scope.audience must list at least one audience type")
	}
	for _, t := range scope.Audience {
		if !models.ValidUserType(t) {
			return appErrors.Clone(appErrors.ErrValidation, "scope.audience contains an unknown audience type")
		}
	}
	if s.strictScope && scope.TargetListCount() > 1 {
		return appErrors.Clone(appErrors.ErrValidation, "scope may populate only one of student_ids, section_ids or unit_ids")
	}
	return nil
}

// Publish performs the fan-out for a due broadcast. It is idempotent:
// an already-published broadcast is a no-op, and a concurrent sweep
// publishing the same row results in exactly one set of derived events.
func (s *BroadcastService) Publish(ctx context.Context, broadcast *models.Broadcast) error {
	if broadcast.Published() {
		return nil
	}

	publishedAt := time.Now().UTC()
	targets := s.resolver.FanOutTargets(broadcast.Scope)
	events := make([]*models.TimelineEvent, 0, len(targets))
	for _, target := range targets {
		events = append(events, s.deriveEvent(broadcast, target, publishedAt))
	}

	claimed, err := s.repo.PublishWithEvents(ctx, broadcast.ID, publishedAt, events)
	if err != nil {
		s.metrics.RecordPublish("failed")
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish broadcast")
	}
	if !claimed {
		s.metrics.RecordPublish("skipped")
		return nil
	}
	broadcast.PublishedAt = &publishedAt
	s.metrics.RecordPublish("published")
	s.metrics.RecordFanOut(len(events))

	if s.notifier != nil {
		if err := s.notifier.BroadcastPublished(ctx, broadcast, targets); err != nil {
			// Delivery hand-off is best-effort; the publish already happened.
			s.logger.Warn("notification hand-off failed",
				zap.String("broadcast_id", broadcast.ID), zap.Error(err))
		}
	}
	s.logger.Info("broadcast published",
		zap.String("broadcast_id", broadcast.ID),
		zap.String("kind", string(broadcast.Kind)),
		zap.Int("fanout_events", len(events)))
	return nil
}

func (s *BroadcastService) deriveEvent(broadcast *models.Broadcast, target FanOutTarget, at time.Time) *models.TimelineEvent {
	eventType := "AnnouncementPublished"
	if broadcast.Kind == models.KindMemo {
		eventType = "MemoPublished"
	}
	event := &models.TimelineEvent{
		ActorID:   &broadcast.CreatorID,
		EventType: eventType,
		TitleAr:   broadcast.TitleAr,
		TitleEn:   broadcast.TitleEn,
		BodyAr:    &broadcast.BodyAr,
		BodyEn:    &broadcast.BodyEn,
		Payload: models.JSONMap{
			"broadcast_id": broadcast.ID,
			"kind":         string(broadcast.Kind),
			"ack_required": broadcast.AckRequired,
		},
		Scope:     target.Scope,
		CreatedAt: at,
	}
	id := target.ID
	switch target.Scope {
	case models.ScopeStudent:
		event.StudentID = &id
	case models.ScopeSection:
		event.SectionID = &id
		event.UnitID = broadcast.UnitID
	case models.ScopeUnit:
		event.UnitID = &id
	}
	return event
}

// PublishDue publishes every broadcast whose publish time has passed.
// Safe to run concurrently from multiple workers: losing the publish
// claim is counted as skipped, not an error. A failed attempt is left
// for the next sweep run.
func (s *BroadcastService) PublishDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now, 0)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list due broadcasts")
	}
	published := 0
	var firstErr error
	for i := range due {
		broadcast := due[i]
		if err := s.Publish(ctx, &broadcast); err != nil {
			s.logger.Error("sweep publish failed", zap.String("broadcast_id", broadcast.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if broadcast.Published() {
			published++
		}
	}
	return published, firstErr
}

// ListAnnouncements returns the published announcements visible to the
// caller: a coarse published-only query followed by the exact audience
// predicate in-process.
func (s *BroadcastService) ListAnnouncements(ctx context.Context, user *models.JWTClaims, page, pageSize int) ([]models.Broadcast, *models.Pagination, error) {
	broadcasts, pagination, err := s.listVisible(ctx, user, models.KindAnnouncement, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return broadcasts, pagination, nil
}

// ListMemos returns the published memos visible to the caller, each
// flagged with the caller's acknowledgement state.
func (s *BroadcastService) ListMemos(ctx context.Context, user *models.JWTClaims, page, pageSize int) ([]models.BroadcastWithAck, *models.Pagination, error) {
	memos, pagination, err := s.listVisible(ctx, user, models.KindMemo, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(memos))
	for _, memo := range memos {
		ids = append(ids, memo.ID)
	}
	acked, err := s.acks.AcknowledgedSet(ctx, user.UserID, ids)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load acknowledgements")
	}
	out := make([]models.BroadcastWithAck, 0, len(memos))
	for _, memo := range memos {
		out = append(out, models.BroadcastWithAck{Broadcast: memo, IsAcknowledged: acked[memo.ID]})
	}
	return out, pagination, nil
}

func (s *BroadcastService) listVisible(ctx context.Context, user *models.JWTClaims, kind models.BroadcastKind, page, pageSize int) ([]models.Broadcast, *models.Pagination, error) {
	if user == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	filter := models.BroadcastFilter{Kind: kind, PublishedOnly: true}
	broadcasts, err := s.repo.ListPublished(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list broadcasts")
	}

	// The audience predicate runs before the page window is cut, so the
	// page and total reflect only rows the caller is allowed to see.
	visible := make([]models.Broadcast, 0, len(broadcasts))
	for _, broadcast := range broadcasts {
		match, err := s.resolver.Matches(ctx, user, broadcast.Scope)
		if err != nil {
			return nil, nil, err
		}
		if match {
			visible = append(visible, broadcast)
		}
	}

	total := len(visible)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return visible[start:end], pagination, nil
}

// Acknowledge records that the caller has seen a memo. Re-acknowledging
// is absorbed, the first acknowledged_at wins. A memo that does not
// require acknowledgement is a benign no-op returning nil.
func (s *BroadcastService) Acknowledge(ctx context.Context, memoID string, user *models.JWTClaims) (*models.Acknowledgement, error) {
	if user == nil {
		return nil, appErrors.ErrUnauthorized
	}
	broadcast, err := s.repo.FindByID(ctx, memoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "memo not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load memo")
	}
	if broadcast.Kind != models.KindMemo || !broadcast.Published() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "memo not found")
	}
	match, err := s.resolver.Matches(ctx, user, broadcast.Scope)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "memo is not addressed to this user")
	}
	if !broadcast.AckRequired {
		return nil, nil
	}
	ack, err := s.acks.Upsert(ctx, broadcast.ID, user.UserID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record acknowledgement")
	}
	return ack, nil
}

// Acknowledgements returns all recorded acknowledgements for a memo.
func (s *BroadcastService) Acknowledgements(ctx context.Context, memoID string) (*models.Broadcast, []models.Acknowledgement, error) {
	broadcast, err := s.repo.FindByID(ctx, memoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "memo not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load memo")
	}
	if broadcast.Kind != models.KindMemo {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "memo not found")
	}
	acks, err := s.acks.ListByBroadcast(ctx, memoID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list acknowledgements")
	}
	return broadcast, acks, nil
}
