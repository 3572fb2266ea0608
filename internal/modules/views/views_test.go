package views

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/mx-space/viewblock/internal/middleware"
	"github.com/mx-space/viewblock/internal/viewblock"
	"github.com/mx-space/viewblock/internal/viewblock/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingInvalidator struct{ ids []uint }

func (r *recordingInvalidator) InvalidateView(_ context.Context, id uint) error {
	r.ids = append(r.ids, id)
	return nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *recordingInvalidator) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	inv := &recordingInvalidator{}
	return NewService(db, inv, zap.NewNop()), mock, inv
}

var viewColumns = []string{"id", "name", "title", "kind", "status", "limit", "order_dir", "extra_attributes"}

func TestResolveByID(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT \\* FROM `views` WHERE status <> \\? AND id = \\?").
		WillReturnRows(sqlmock.NewRows(viewColumns).
			AddRow(42, "books", "Books", "posts", "publish", 5, "asc", `[{"attribute":"city","filter_type":"city"}]`))

	v, err := svc.Resolve(context.Background(), " 42 ")
	require.NoError(t, err)
	assert.Equal(t, uint(42), v.ID)
	assert.Equal(t, 5, v.Limit)
	assert.Equal(t, "asc", v.Order)
	assert.Equal(t, []viewblock.ExtraAttribute{{Attribute: "city", FilterType: "city"}}, v.ExtraAttributes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveByName(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT \\* FROM `views` WHERE status <> \\? AND name = \\?").
		WillReturnRows(sqlmock.NewRows(viewColumns).AddRow(42, "books", "Books", "posts", "publish", -1, "desc", "[]"))

	v, err := svc.Resolve(context.Background(), `{"ID":"42","post_name":"books"}`)
	require.NoError(t, err)
	assert.Equal(t, "books", v.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveMissing(t *testing.T) {
	svc, mock, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, viewblock.ErrViewNotSet)

	mock.ExpectQuery("SELECT \\* FROM `views`").WillReturnRows(sqlmock.NewRows(viewColumns))
	_, err = svc.Resolve(context.Background(), "999")
	assert.ErrorIs(t, err, viewblock.ErrViewNotFound)
	assert.ErrorContains(t, err, "999")
}

func TestPublishedGroupsByKind(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT `id`,`name`,`title`,`kind` FROM `views` WHERE status = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "title", "kind"}).
			AddRow(3, "authors", "Authors", "users").
			AddRow(1, "books", "Books", "posts").
			AddRow(2, "genres", "Genres", "taxonomy").
			AddRow(4, "misc", "Misc", ""))

	known, err := svc.Published(context.Background())
	require.NoError(t, err)

	want := preview.KnownViews{
		Posts:    []preview.KnownView{{ID: "1", Name: "books", Title: "Books"}, {ID: "4", Name: "misc", Title: "Misc"}},
		Taxonomy: []preview.KnownView{{ID: "2", Name: "genres", Title: "Genres"}},
		Users:    []preview.KnownView{{ID: "3", Name: "authors", Title: "Authors"}},
	}
	if diff := cmp.Diff(want, known); diff != "" {
		t.Errorf("published views mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishedEmptyListsAreNotNil(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id", "name", "title", "kind"}))

	known, err := svc.Published(context.Background())
	require.NoError(t, err)
	assert.True(t, known.Loaded())
	assert.NotNil(t, known.Posts)
	assert.NotNil(t, known.Taxonomy)
	assert.NotNil(t, known.Users)
}

func TestCreateValidation(t *testing.T) {
	svc, mock, _ := newTestService(t)
	bad := -3

	cases := map[string]CreateViewDTO{
		"kind":   {Name: "a", Title: "A", Kind: "pages"},
		"status": {Name: "a", Title: "A", Status: "hidden"},
		"limit":  {Name: "a", Title: "A", Limit: &bad},
		"offset": {Name: "a", Title: "A", Offset: -1},
		"order":  {Name: "a", Title: "A", Order: "up"},
	}
	for name, dto := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), &dto)
			assert.True(t, isValidationError(err), "got %v", err)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesItemsAndInvalidates(t *testing.T) {
	svc, mock, inv := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `view_items` SET `deleted_at`").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE `views` SET `deleted_at`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), 42))
	assert.Equal(t, []uint{42}, inv.ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, mock, _ := newTestService(t)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v2"), middleware.Auth())

	mock.ExpectQuery("SELECT \\* FROM `views`").
		WillReturnRows(sqlmock.NewRows(viewColumns).AddRow(42, "books", "Books", "posts", "publish", -1, "desc", "[]"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/views/books", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "books", body["post_name"])

	mock.ExpectQuery("SELECT \\* FROM `views`").WillReturnRows(sqlmock.NewRows(viewColumns))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/views/999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWritesNeedAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(t)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v2"), middleware.Auth())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v2/views/42", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
