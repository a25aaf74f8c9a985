package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/middleware"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/service"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/response"
)

type eventEmitter interface {
	Emit(ctx context.Context, req service.EmitEventRequest) (*models.TimelineEvent, error)
}

// EventHandler exposes the producer-facing emitter endpoint.
type EventHandler struct {
	events eventEmitter
}

// NewEventHandler constructs EventHandler.
func NewEventHandler(events eventEmitter) *EventHandler {
	return &EventHandler{events: events}
}

// Emit godoc
// @Summary Emit a timeline event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body service.EmitEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope "missing identifier for declared scope"
// @Router /events [post]
func (h *EventHandler) Emit(c *gin.Context) {
	var req service.EmitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.ActorID == nil {
		if claims := middleware.CurrentUser(c); claims != nil {
			req.ActorID = &claims.UserID
		}
	}
	event, err := h.events.Emit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}
