package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"restaurant-review-api/apperr"
	"restaurant-review-api/logging"
	"restaurant-review-api/metrics"
	"restaurant-review-api/models"
	"restaurant-review-api/tokens"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers map[uint]*models.User

func (f fakeUsers) Get(_ context.Context, id uint) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("User not found")
}

func newAuthRouter(tm *tokens.Manager, users UserLookup) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthRequired(tm, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUserID(c), "admin": IsAdmin(c)})
	})
	r.GET("/admin", AuthRequired(tm, users), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	tm := tokens.NewManager("secret", time.Hour, time.Hour)
	bob := &models.User{ID: 1, Username: "bob"}
	gone := &models.User{ID: 2, Username: "gone"}
	r := newAuthRouter(tm, fakeUsers{1: bob})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "not-a-jwt").Code)

	other := tokens.NewManager("other-secret", time.Hour, time.Hour)
	forged, err := other.IssueAccess(bob)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", forged).Code)

	ghost, err := tm.IssueAccess(gone)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", ghost).Code)

	token, err := tm.IssueAccess(bob)
	require.NoError(t, err)
	w := do(r, http.MethodGet, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"admin":false}`, w.Body.String())
}

func TestAuthRequiredRejectsNonBearerScheme(t *testing.T) {
	tm := tokens.NewManager("secret", time.Hour, time.Hour)
	r := newAuthRouter(tm, fakeUsers{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic Ym9iOnNlY3JldA==")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRequiredUsesStoredRole(t *testing.T) {
	tm := tokens.NewManager("secret", time.Hour, time.Hour)
	bob := &models.User{ID: 1, Username: "bob"}
	users := fakeUsers{1: bob}
	r := newAuthRouter(tm, users)

	token, err := tm.IssueAccess(bob)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", token).Code)

	// Promotion takes effect without a new token.
	bob.IsAdmin = true
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/admin", token).Code)

	// A token claiming admin does not grant it.
	mallory := &models.User{ID: 3, Username: "mallory"}
	users[3] = mallory
	claimed, err := tm.IssueAccess(&models.User{ID: 3, IsAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", claimed).Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.Discard())
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/login", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/login", "").Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "").Code)

	now = now.Add(time.Hour)
	assert.Equal(t, 1, rl.Cleanup(time.Minute))
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(logging.Discard()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := do(r, http.MethodGet, "/ping", "")
	id := w.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/restaurants/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, http.MethodGet, "/api/restaurants/1", "")
	do(r, http.MethodGet, "/api/restaurants/2", "")

	n, err := testutil.GatherAndCount(m.Registry(), "restaurant_reviews_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/api/restaurants", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/restaurants", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
