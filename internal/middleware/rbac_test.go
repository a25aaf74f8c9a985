package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
)

func rbacRouter(guard gin.HandlerFunc, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
	})
	r.POST("/guarded", guard, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doPost(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/guarded", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRequireUserTypes(t *testing.T) {
	guard := RequireUserTypes(models.UserTypeStaff)

	staff := &models.JWTClaims{UserID: "t1", UserType: models.UserTypeStaff}
	assert.Equal(t, http.StatusOK, doPost(rbacRouter(guard, staff)).Code)

	guardian := &models.JWTClaims{UserID: "g1", UserType: models.UserTypeGuardian}
	assert.Equal(t, http.StatusForbidden, doPost(rbacRouter(guard, guardian)).Code)

	assert.Equal(t, http.StatusUnauthorized, doPost(rbacRouter(guard, nil)).Code)
}

func TestRequireRoles(t *testing.T) {
	guard := RequireRoles(models.RoleSuperAdmin, "Principal")

	admin := &models.JWTClaims{UserID: "t1", UserType: models.UserTypeStaff, Roles: []string{models.RoleSuperAdmin}}
	assert.Equal(t, http.StatusOK, doPost(rbacRouter(guard, admin)).Code)

	teacher := &models.JWTClaims{UserID: "t2", UserType: models.UserTypeStaff, Roles: []string{"Teacher"}}
	assert.Equal(t, http.StatusForbidden, doPost(rbacRouter(guard, teacher)).Code)
}
