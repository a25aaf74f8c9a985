package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/middleware"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/service"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/response"
)

type broadcastPublisher interface {
	Create(ctx context.Context, req service.CreateBroadcastRequest, creator *models.JWTClaims) (*models.Broadcast, error)
	ListAnnouncements(ctx context.Context, user *models.JWTClaims, page, pageSize int) ([]models.Broadcast, *models.Pagination, error)
	ListMemos(ctx context.Context, user *models.JWTClaims, page, pageSize int) ([]models.BroadcastWithAck, *models.Pagination, error)
	Acknowledge(ctx context.Context, memoID string, user *models.JWTClaims) (*models.Acknowledgement, error)
}

type ackExporter interface {
	AcknowledgementReport(ctx context.Context, memoID, format string) (*service.ExportResult, error)
}

// BroadcastHandler exposes announcement and memo endpoints.
type BroadcastHandler struct {
	broadcasts broadcastPublisher
	exports    ackExporter
}

// NewBroadcastHandler constructs BroadcastHandler.
func NewBroadcastHandler(broadcasts broadcastPublisher, exports ackExporter) *BroadcastHandler {
	return &BroadcastHandler{broadcasts: broadcasts, exports: exports}
}

// CreateAnnouncement godoc
// @Summary Create an announcement
// @Tags Broadcasts
// @Accept json
// @Produce json
// @Param payload body service.CreateBroadcastRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Router /announcements [post]
func (h *BroadcastHandler) CreateAnnouncement(c *gin.Context) {
	h.create(c, models.KindAnnouncement)
}

// CreateMemo godoc
// @Summary Create a memo
// @Tags Broadcasts
// @Accept json
// @Produce json
// @Param payload body service.CreateBroadcastRequest true "Memo payload"
// @Success 201 {object} response.Envelope
// @Router /memos [post]
func (h *BroadcastHandler) CreateMemo(c *gin.Context) {
	h.create(c, models.KindMemo)
}

func (h *BroadcastHandler) create(c *gin.Context, kind models.BroadcastKind) {
	var req service.CreateBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.Kind = string(kind)
	broadcast, err := h.broadcasts.Create(c.Request.Context(), req, middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, broadcast)
}

// ListAnnouncements godoc
// @Summary List published announcements visible to the caller
// @Tags Broadcasts
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *BroadcastHandler) ListAnnouncements(c *gin.Context) {
	page, size := paging(c)
	announcements, pagination, err := h.broadcasts.ListAnnouncements(c.Request.Context(), middleware.CurrentUser(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, pagination)
}

// ListMemos godoc
// @Summary List published memos with the caller's acknowledgement state
// @Tags Broadcasts
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /memos [get]
func (h *BroadcastHandler) ListMemos(c *gin.Context) {
	page, size := paging(c)
	memos, pagination, err := h.broadcasts.ListMemos(c.Request.Context(), middleware.CurrentUser(c), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memos, pagination)
}

// Acknowledge godoc
// @Summary Acknowledge a memo
// @Tags Broadcasts
// @Produce json
// @Param id path string true "Memo ID"
// @Success 200 {object} response.Envelope
// @Success 204 "memo does not require acknowledgement"
// @Router /memos/{id}/acknowledge [post]
func (h *BroadcastHandler) Acknowledge(c *gin.Context) {
	ack, err := h.broadcasts.Acknowledge(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if ack == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, ack, nil)
}

// ExportAcknowledgements godoc
// @Summary Export a memo's acknowledgement report
// @Tags Broadcasts
// @Produce text/csv
// @Param id path string true "Memo ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /memos/{id}/acknowledgements/export [get]
func (h *BroadcastHandler) ExportAcknowledgements(c *gin.Context) {
	result, err := h.exports.AcknowledgementReport(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func paging(c *gin.Context) (int, int) {
	page := 1
	size := 50
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		size = v
	}
	return page, size
}
