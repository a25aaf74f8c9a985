package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
)

type timelineEventWriter interface {
	Insert(ctx context.Context, event *models.TimelineEvent) error
}

// EventService is the emitter: it validates scope invariants and writes
// timeline events. It performs no notification dispatch; producers hand
// recipients to the notification collaborator themselves.
type EventService struct {
	repo      timelineEventWriter
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEventService constructs the emitter.
func NewEventService(repo timelineEventWriter, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EventService{repo: repo, validator: validate, metrics: metrics, logger: logger}
	_ = svc.validator.RegisterValidation("visibility_scope", func(fl validator.FieldLevel) bool {
		return models.ValidVisibilityScope(models.VisibilityScope(fl.Field().String()))
	})
	return svc
}

// EmitEventRequest describes a producer's event payload.
type EmitEventRequest struct {
	UnitID        *string                `json:"unit_id"`
	SectionID     *string                `json:"section_id"`
	StudentID     *string                `json:"student_id"`
	ActorID       *string                `json:"actor_id"`
	EventType     string                 `json:"event_type" validate:"required"`
	TitleAr       string                 `json:"title_ar" validate:"required"`
	TitleEn       string                 `json:"title_en" validate:"required"`
	BodyAr        *string                `json:"body_ar"`
	BodyEn        *string                `json:"body_en"`
	Payload       models.JSONMap         `json:"payload"`
	Scope         models.VisibilityScope `json:"visibility_scope" validate:"required,visibility_scope"`
	AudienceRoles []string               `json:"audience_roles"`
}

// Emit validates and persists one timeline event, returning it unchanged
// on success. A declared scope missing its identifier is refused with a
// scope violation, never silently dropped.
func (s *EventService) Emit(ctx context.Context, req EmitEventRequest) (*models.TimelineEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	event := &models.TimelineEvent{
		UnitID:    req.UnitID,
		SectionID: req.SectionID,
		StudentID: req.StudentID,
		ActorID:   req.ActorID,
		EventType: req.EventType,
		TitleAr:   req.TitleAr,
		TitleEn:   req.TitleEn,
		BodyAr:    req.BodyAr,
		BodyEn:    req.BodyEn,
		Payload:   req.Payload,
		Scope:     req.Scope,
	}
	// audience_roles is meaningful only for CUSTOM visibility.
	if req.Scope == models.ScopeCustom {
		event.AudienceRoles = req.AudienceRoles
	}

	if !event.ScopeSatisfied() {
		return nil, appErrors.Clone(appErrors.ErrScopeViolation,
			fmt.Sprintf("visibility scope %s requires its identifier", event.Scope))
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist event")
	}
	s.metrics.RecordEventEmitted(event.Scope)
	return event, nil
}

// EmitUnit is sugar for the unit-only shape.
func (s *EventService) EmitUnit(ctx context.Context, unitID string, req EmitEventRequest) (*models.TimelineEvent, error) {
	req.Scope = models.ScopeUnit
	req.UnitID = &unitID
	return s.Emit(ctx, req)
}

// EmitSection is sugar for the section-within-unit shape.
func (s *EventService) EmitSection(ctx context.Context, unitID, sectionID string, req EmitEventRequest) (*models.TimelineEvent, error) {
	req.Scope = models.ScopeSection
	req.UnitID = &unitID
	req.SectionID = &sectionID
	return s.Emit(ctx, req)
}

// EmitStudent is sugar for the student-within-section shape.
func (s *EventService) EmitStudent(ctx context.Context, unitID, sectionID, studentID string, req EmitEventRequest) (*models.TimelineEvent, error) {
	req.Scope = models.ScopeStudent
	req.UnitID = &unitID
	req.SectionID = &sectionID
	req.StudentID = &studentID
	return s.Emit(ctx, req)
}
