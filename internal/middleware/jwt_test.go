package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *models.JWTClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testClaims(userType models.UserType) *models.JWTClaims {
	return &models.JWTClaims{
		UserID:   "u1",
		UserType: userType,
		Roles:    []string{"Teacher"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	signed := signToken(t, testClaims(models.UserTypeStaff), testSecret)

	claims, err := ParseToken(signed, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.UserTypeStaff, claims.UserType)
	assert.True(t, claims.HasRole("Teacher"))
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	signed := signToken(t, testClaims(models.UserTypeStaff), "other-secret")

	_, err := ParseToken(signed, testSecret)
	assert.Error(t, err)
}

func TestParseTokenRejectsUnknownUserType(t *testing.T) {
	signed := signToken(t, testClaims("ROBOT"), testSecret)

	_, err := ParseToken(signed, testSecret)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	claims := testClaims(models.UserTypeStaff)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	signed := signToken(t, claims, testSecret)

	_, err := ParseToken(signed, testSecret)
	assert.Error(t, err)
}

func jwtRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(testSecret), func(c *gin.Context) {
		claims := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})
	return r
}

func TestJWTMiddlewareAllowsValidToken(t *testing.T) {
	r := jwtRouter()
	signed := signToken(t, testClaims(models.UserTypeGuardian), testSecret)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	r := jwtRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRejectsMalformedHeader(t *testing.T) {
	r := jwtRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
