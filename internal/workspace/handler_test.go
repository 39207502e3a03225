package workspace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/diagram/internal/auth"
	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/store"
)

type fixture struct {
	router *mux.Router
	store  *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	for _, u := range []store.User{
		{ID: "user_ada", Email: "ada@example.com", DisplayName: "Ada"},
		{ID: "user_bob", Email: "bob@example.com", DisplayName: "Bob"},
	} {
		_, err := mem.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithUserID(r.Context(), r.Header.Get("X-User"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	NewHandler(NewService(mem)).Routes(api)
	return &fixture{router: r, store: mem}
}

func (f *fixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-User", user)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) create(t *testing.T, user, body string) Diagram {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/diagrams", user, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d Diagram
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	return d
}

func TestCreateSeedsSnapshot(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, "user_ada", `{"name":"Flow","sample":true}`)
	assert.True(t, strings.HasPrefix(d.ID, "diag_"))
	assert.Equal(t, "user_ada", d.OwnerID)

	rec := f.do(http.MethodGet, "/api/diagrams/"+d.ID+"/snapshots/latest", "user_ada", "")
	require.Equal(t, http.StatusOK, rec.Code)
	scene, skipped, err := document.Deserialize(d.ID, rec.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Len(t, scene.Roots, 5)

	empty := f.create(t, "user_ada", `{"name":"Blank"}`)
	rec = f.do(http.MethodGet, "/api/diagrams/"+empty.ID+"/snapshots/latest", "user_ada", "")
	scene, _, err = document.Deserialize(empty.ID, rec.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, scene.Roots)
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/diagrams", "user_ada", `{"name":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/diagrams", "user_ada", `nope`).Code)
}

func TestMembershipGatesAccess(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, "user_ada", `{"name":"Flow"}`)
	path := "/api/diagrams/" + d.ID

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, path, "user_bob", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, path, "user_bob", "").Code)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, path+"/invite", "user_ada", `{"email":"eve@example.com"}`).Code)
	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, path+"/invite", "user_ada", `{"email":"bob@example.com"}`).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, path, "user_bob", "").Code)

	rec := f.do(http.MethodGet, path+"/members", "user_bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var members []Member
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	require.Len(t, members, 2)
	assert.Equal(t, "owner", members[0].Role)
	assert.Equal(t, "editor", members[1].Role)

	rec = f.do(http.MethodGet, "/api/diagrams", "user_bob", "")
	var list []Diagram
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, path+"/members/user_ada", "user_ada", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, path+"/members/user_bob", "user_ada", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, path, "user_bob", "").Code)
}

func TestDeleteByOwner(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, "user_ada", `{"name":"Flow"}`)
	path := "/api/diagrams/" + d.ID

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, path, "user_ada", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, path, "user_ada", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, path, "user_ada", "").Code)
}
