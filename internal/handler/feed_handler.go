package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/middleware"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/service"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/response"
)

type feedProvider interface {
	Feed(ctx context.Context, user *models.JWTClaims, req service.FeedRequest) (*models.FeedPage, error)
}

// FeedHandler exposes the activity feed.
type FeedHandler struct {
	feed feedProvider
}

// NewFeedHandler constructs FeedHandler.
func NewFeedHandler(feed feedProvider) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// List godoc
// @Summary Personal activity feed
// @Tags Feed
// @Produce json
// @Param type query string false "Filter by event type"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param child_id query string false "Guardian: restrict to one linked student"
// @Param limit query int false "Page size"
// @Param cursor query string false "Continuation token"
// @Success 200 {object} response.Envelope
// @Router /feed [get]
func (h *FeedHandler) List(c *gin.Context) {
	req := service.FeedRequest{
		EventType:      strings.TrimSpace(c.Query("type")),
		ChildStudentID: c.Query("child_id"),
		Cursor:         c.Query("cursor"),
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			req.DateFrom = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			req.DateTo = &t
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		req.Limit = limit
	}

	page, err := h.feed.Feed(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{}
	if page.NextCursor != "" {
		meta["next_cursor"] = page.NextCursor
	}
	response.JSON(c, http.StatusOK, page.Items, nil, meta)
}
