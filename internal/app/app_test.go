package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mx-space/viewblock/internal/config"
	"github.com/mx-space/viewblock/internal/modules/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T, cfg *config.AppConfig) (*App, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return newApp(zap.NewNop(), cfg, db, nil, render.NewCache(nil, 0)), mock
}

func TestRoutes(t *testing.T) {
	cfg, err := config.Parse([]byte("env: production\n"))
	require.NoError(t, err)
	a, mock := newTestApp(t, cfg)

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/ping", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v2/views", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, ":2333", a.Addr())

	mock.ExpectClose()
	assert.NoError(t, a.Shutdown())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchOriginPattern(t *testing.T) {
	cases := []struct {
		pattern, origin string
		want            bool
	}{
		{"example.com", "https://example.com", true},
		{"*.example.com", "https://blog.example.com", true},
		{"*.example.com", "https://example.org", false},
		{"localhost:*", "http://localhost:5173", true},
		{"localhost:*", "http://remotehost:5173", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, matchOriginPattern(tc.pattern, extractOriginHost(tc.origin)), "%s vs %s", tc.pattern, tc.origin)
	}
}

func TestCORSAllowList(t *testing.T) {
	cfg, err := config.Parse([]byte("env: production\nallowed_origins: [\"*.example.com\"]\n"))
	require.NoError(t, err)
	c := corsConfig(cfg)
	assert.True(t, c.AllowOriginFunc("https://a.example.com"))
	assert.False(t, c.AllowOriginFunc("https://evil.test"))

	dev, err := config.Parse(nil)
	require.NoError(t, err)
	assert.True(t, corsConfig(dev).AllowOriginFunc("https://evil.test"))
}
