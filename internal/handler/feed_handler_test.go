package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/middleware"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/service"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
)

type feedServiceMock struct {
	page     *models.FeedPage
	err      error
	lastUser *models.JWTClaims
	lastReq  service.FeedRequest
}

func (m *feedServiceMock) Feed(ctx context.Context, user *models.JWTClaims, req service.FeedRequest) (*models.FeedPage, error) {
	m.lastUser = user
	m.lastReq = req
	return m.page, m.err
}

func feedContext(t *testing.T, target string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestFeedHandlerListParsesFilters(t *testing.T) {
	mockSvc := &feedServiceMock{page: &models.FeedPage{Items: []models.FeedItem{}, NextCursor: "tok"}}
	handler := NewFeedHandler(mockSvc)

	claims := &models.JWTClaims{UserID: "g1", UserType: models.UserTypeGuardian}
	c, w := feedContext(t, "/feed?type=HOMEWORK_POSTED&from=2026-03-01T00:00:00Z&child_id=s1&limit=10&cursor=tok0", claims)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, claims, mockSvc.lastUser)
	assert.Equal(t, "HOMEWORK_POSTED", mockSvc.lastReq.EventType)
	assert.Equal(t, "s1", mockSvc.lastReq.ChildStudentID)
	assert.Equal(t, 10, mockSvc.lastReq.Limit)
	assert.Equal(t, "tok0", mockSvc.lastReq.Cursor)
	require.NotNil(t, mockSvc.lastReq.DateFrom)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), mockSvc.lastReq.DateFrom.UTC())

	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "tok", envelope.Meta["next_cursor"])
}

func TestFeedHandlerListForbidden(t *testing.T) {
	mockSvc := &feedServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "student is not linked to this guardian")}
	handler := NewFeedHandler(mockSvc)

	c, w := feedContext(t, "/feed?child_id=s9", &models.JWTClaims{UserID: "g1", UserType: models.UserTypeGuardian})
	handler.List(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
