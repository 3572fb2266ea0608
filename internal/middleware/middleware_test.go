package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/viewblock/internal/pkg/jwt"
	"github.com/mx-space/viewblock/internal/pkg/nonce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signed(t *testing.T, uid string, caps ...string) string {
	t.Helper()
	token, err := jwt.Sign(uid, caps, time.Hour)
	require.NoError(t, err)
	return token
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndCapability(t *testing.T) {
	r := gin.New()
	r.GET("/edit", Auth(), RequireCapability(CapabilityEditViews), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/edit", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/edit", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "u1"))
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/edit?token="+signed(t, "u2", CapabilityEditViews), nil)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2", w.Body.String())
}

func TestOptionalAuthIgnoresBadToken(t *testing.T) {
	r := gin.New()
	r.GET("/", OptionalAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, "%v", IsAuthenticated(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Body.String())
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", NormalizeToken("  bearer abc "))
	assert.Equal(t, "abc", NormalizeToken("abc"))
	assert.Empty(t, NormalizeToken("   "))
}

func TestVerifyNonce(t *testing.T) {
	issuer := nonce.NewIssuer("secret", time.Hour)
	r := gin.New()
	r.POST("/preview", OptionalAuth(), VerifyNonce(issuer, "preview", zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	post := func(form url.Values, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/preview", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return serve(r, req)
	}

	w := post(url.Values{}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false,"data":{"message":"Invalid security token. Reload the editor and try again."}}`, w.Body.String())

	anon, err := issuer.Issue("preview", "")
	require.NoError(t, err)
	w = post(url.Values{NonceField: {anon}}, "")
	assert.Equal(t, "ok", w.Body.String())

	// A nonce is bound to the user it was issued for.
	w = post(url.Values{NonceField: {anon}}, signed(t, "u1"))
	assert.NotEqual(t, "ok", w.Body.String())

	mine, err := issuer.Issue("preview", "u1")
	require.NoError(t, err)
	w = post(url.Values{NonceField: {mine}}, signed(t, "u1"))
	assert.Equal(t, "ok", w.Body.String())
}

func TestLimiterAllow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(60, 2)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "buckets are per key")

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestLimiterSweepsStaleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(60, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(staleBucketAfter + time.Minute)
	l.Allow("b")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "a")
	assert.Contains(t, l.buckets, "b")
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewLimiter(1, 1)
	r := gin.New()
	r.GET("/", OptionalAuth(), RateLimit(l), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "u1"))
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

func TestLoggerRequestID(t *testing.T) {
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextKeyRequestID)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, w.Header().Get(HeaderRequestID), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "client-id")
	w = serve(r, req)
	assert.Equal(t, "client-id", w.Body.String())
}

func TestIdempotenceWithoutRedis(t *testing.T) {
	r := gin.New()
	r.POST("/", Idempotence(nil, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
		assert.Equal(t, http.StatusCreated, w.Code)
	}
}
