package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/backstage/internal/auth"
	"github.com/atelierhq/backstage/internal/entity"
	"github.com/atelierhq/backstage/internal/manager"
	"github.com/atelierhq/backstage/internal/schema"
)

type fakeRows struct {
	rows map[schema.Table][]entity.Row
}

func (f *fakeRows) List(ctx context.Context, table schema.Table, opts entity.ListOptions) ([]entity.Row, error) {
	return append([]entity.Row(nil), f.rows[table]...), nil
}

func (f *fakeRows) Create(ctx context.Context, table schema.Table, partial entity.Row) (entity.Row, error) {
	row := entity.Row{"id": uuid.New().String()}
	for k, v := range partial {
		row[k] = v
	}
	f.rows[table] = append(f.rows[table], row)
	return row, nil
}

func (f *fakeRows) Update(ctx context.Context, table schema.Table, id string, patch entity.Row) (entity.Row, error) {
	for i, row := range f.rows[table] {
		if row.ID() == id {
			for k, v := range patch {
				row[k] = v
			}
			f.rows[table][i] = row
			return row, nil
		}
	}
	return nil, fmt.Errorf("row %s not found", id)
}

func (f *fakeRows) Delete(ctx context.Context, table schema.Table, id string) error {
	for i, row := range f.rows[table] {
		if row.ID() == id {
			f.rows[table] = append(f.rows[table][:i], f.rows[table][i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("row %s not found", id)
}

func testRouter(t *testing.T, jwt *auth.JWTService, admin *AdminHandler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	grp := r.Group(adminPrefix)
	grp.Use(RequireAuth(jwt))
	grp.Use(RequireAdmin())
	{
		grp.GET("/tables", admin.ListTables)
		grp.GET("/tables/:table/schema", admin.GetTableSchema)
		grp.GET("/tables/:table/grid", admin.GridView)
		grp.POST("/tables/:table/rows", admin.CreateRow)
		grp.PATCH("/tables/:table/rows/:id/cells/:column", admin.UpdateCell)
		grp.DELETE("/tables/:table/rows/:id", admin.DeleteRow)
		grp.POST("/tables/:table/rows/bulk-delete", admin.BulkDeleteRows)
		grp.GET("/media", admin.ListMedia)
	}
	return r
}

func adminToken(t *testing.T, jwt *auth.JWTService) string {
	t.Helper()
	token, err := jwt.Generate(uuid.New(), "admin@example.com", "admin")
	require.NoError(t, err)
	return token.AccessToken
}

func newAdminFixture(t *testing.T) (*gin.Engine, *auth.JWTService, *fakeRows) {
	t.Helper()
	jwt := auth.NewJWTService("test-secret", 24)
	store := &fakeRows{rows: map[schema.Table][]entity.Row{
		schema.TablePosts: {
			{"id": "p1", "title": "First"},
			{"id": "p2", "title": "Second"},
		},
		schema.TableMediaAssets: {
			{"id": "m1", "filename": "logo.png", "url": "uploads/abc/logo.png"},
		},
	}}
	mgr := manager.New(store, zerolog.Nop())
	admin := NewAdminHandler(mgr, nil, nil, zerolog.Nop())
	return testRouter(t, jwt, admin), jwt, store
}

func TestRequireAuthMissingToken(t *testing.T) {
	r, _, _ := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/tables", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthBadToken(t *testing.T) {
	r, _, _ := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/tables", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminRejectsEditor(t *testing.T) {
	r, jwt, _ := newAdminFixture(t)
	token, err := jwt.Generate(uuid.New(), "editor@example.com", "editor")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/tables", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListTables(t *testing.T) {
	r, jwt, _ := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/tables", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Tables []manager.TableStats `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Tables)
	assert.Equal(t, schema.TablePosts, body.Tables[0].Table)
}

func TestGetTableSchema(t *testing.T) {
	r, jwt, _ := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/tables/posts/schema", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var ts schema.TableSchema
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ts))
	assert.Equal(t, schema.TablePosts, ts.Table)
	assert.NotEmpty(t, ts.Columns)
}

func TestGetTableSchemaUnknownTable(t *testing.T) {
	r, jwt, _ := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/tables/users/schema", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRowInjectsDefaults(t *testing.T) {
	r, jwt, store := newAdminFixture(t)

	payload, _ := json.Marshal(entity.Row{"title": "Hello", "slug": "hello"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, adminPrefix+"/tables/posts/rows", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	posts := store.rows[schema.TablePosts]
	require.Len(t, posts, 3)
	created := posts[2]
	assert.Equal(t, "Hello", created["title"])
	assert.Equal(t, false, created["published"])
	assert.Equal(t, []string{}, created["tags"])
	// Date columns start null rather than defaulting to an empty string.
	assert.NotContains(t, created, "published_at")
}

func TestCreateRowValidation(t *testing.T) {
	r, jwt, store := newAdminFixture(t)

	payload, _ := json.Marshal(entity.Row{"title": "No Slug"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, adminPrefix+"/tables/posts/rows", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, store.rows[schema.TablePosts], 2)
}

func TestGridView(t *testing.T) {
	r, jwt, _ := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/tables/posts/grid", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Columns []map[string]any `json:"columns"`
		Rows    []struct {
			ID    string            `json:"id"`
			Cells map[string]string `json:"cells"`
		} `json:"rows"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "First", body.Rows[0].Cells["title"])

	editors := map[string]map[string]any{}
	for _, col := range body.Columns {
		editors[col["key"].(string)] = col
	}
	// Hidden columns stay out of the header.
	assert.NotContains(t, editors, "id")
	assert.Equal(t, "toggle", editors["published"]["editor"])
	assert.Equal(t, "Enter", editors["published"]["commit"])
	assert.Equal(t, "textarea", editors["content"]["editor"])
	assert.Equal(t, "Ctrl+Enter", editors["content"]["commit"])
}

func TestGridViewSearch(t *testing.T) {
	r, jwt, _ := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/tables/posts/grid?search=second", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestUpdateCell(t *testing.T) {
	r, jwt, store := newAdminFixture(t)

	payload, _ := json.Marshal(updateCellRequest{Value: "Renamed"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, adminPrefix+"/tables/posts/rows/p1/cells/title", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var row entity.Row
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.Equal(t, "Renamed", row["title"])
	assert.Equal(t, "Renamed", store.rows[schema.TablePosts][0]["title"])
}

func TestUpdateCellReadOnlyColumn(t *testing.T) {
	r, jwt, store := newAdminFixture(t)

	payload, _ := json.Marshal(updateCellRequest{Value: "2030-01-01"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, adminPrefix+"/tables/posts/rows/p1/cells/created_at", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, store.rows[schema.TablePosts][0], "created_at")
}

func TestListMedia(t *testing.T) {
	r, jwt, _ := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, adminPrefix+"/media", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Assets []entity.Row `json:"assets"`
		Count  int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "logo.png", body.Assets[0]["filename"])
}

func TestDeleteRow(t *testing.T) {
	r, jwt, store := newAdminFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, adminPrefix+"/tables/posts/rows/p1", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, store.rows[schema.TablePosts], 1)
}

func TestBulkDeleteReportsFailures(t *testing.T) {
	r, jwt, store := newAdminFixture(t)

	payload, _ := json.Marshal(bulkDeleteRequest{IDs: []string{"p1", "missing", "p2"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, adminPrefix+"/tables/posts/rows/bulk-delete", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, jwt))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusMultiStatus, w.Code)

	var body struct {
		Deleted int               `json:"deleted"`
		Failed  map[string]string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Deleted)
	assert.Contains(t, body.Failed, "missing")
	assert.Empty(t, store.rows[schema.TablePosts])
}

func TestLoginRateLimiter(t *testing.T) {
	rl := NewLoginRateLimiter()
	defer rl.Close()

	for i := 0; i < loginMaxAttempts; i++ {
		ok, _ := rl.Allow("1.2.3.4|a@b.c")
		assert.True(t, ok, "attempt %d", i+1)
	}

	ok, retryIn := rl.Allow("1.2.3.4|a@b.c")
	assert.False(t, ok)
	assert.Greater(t, retryIn, time.Duration(0))

	// Other keys are unaffected.
	ok, _ = rl.Allow("5.6.7.8|a@b.c")
	assert.True(t, ok)

	// Reset lifts the block.
	rl.Reset("1.2.3.4|a@b.c")
	ok, _ = rl.Allow("1.2.3.4|a@b.c")
	assert.True(t, ok)
}

func TestLoginRateLimiterClose(t *testing.T) {
	rl := NewLoginRateLimiter()
	rl.Close()
	// Idempotent, and the limiter still answers after shutdown.
	rl.Close()
	ok, _ := rl.Allow("1.2.3.4|a@b.c")
	assert.True(t, ok)
}

func TestLoginRateLimiterSweep(t *testing.T) {
	rl := &LoginRateLimiter{attempts: make(map[string]*loginAttempt)}
	rl.attempts["stale"] = &loginAttempt{count: 1, firstTry: time.Now().Add(-2 * loginWindow)}
	rl.attempts["fresh"] = &loginAttempt{count: 1, firstTry: time.Now()}

	rl.sweep()
	assert.NotContains(t, rl.attempts, "stale")
	assert.Contains(t, rl.attempts, "fresh")
}

func TestSessionFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, SessionFrom(c))

	want := &auth.Session{Email: "a@b.c", Role: "admin"}
	c.Set(sessionKey, want)
	assert.Equal(t, want, SessionFrom(c))
}
