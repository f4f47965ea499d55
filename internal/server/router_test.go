package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/archivelab/bookhaven/internal/auth"
	"github.com/archivelab/bookhaven/internal/database"
	"github.com/archivelab/bookhaven/internal/fetch"
	"github.com/archivelab/bookhaven/internal/library"
	"github.com/archivelab/bookhaven/internal/records"
	"github.com/archivelab/bookhaven/internal/txlog"
	"github.com/archivelab/bookhaven/internal/usermeta"
	"github.com/archivelab/bookhaven/internal/users"
)

const upstreamSearchPage = `<html><body><ul>
<li class="searchResultItem">
  <h3 class="booktitle"><a href="/works/OL45883W">Dune</a></h3>
  <span class="bookauthor"><a>Frank Herbert</a></span>
</li>
</ul></body></html>`

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tempDir := t.TempDir()

	db, err := database.OpenSQLite(filepath.Join(tempDir, "accounts.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	usersService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	if err := usersService.EnsureDefaultAdmin(); err != nil {
		t.Fatalf("failed to seed default admin: %v", err)
	}

	tokens := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "bookhaven-auth",
		Audience:      "bookhaven-api",
		TokenTTL:      time.Hour,
	})

	writer, err := txlog.NewWriter(txlog.WriterConfig{Path: filepath.Join(tempDir, "transactions.log")})
	if err != nil {
		t.Fatalf("failed to build log writer: %v", err)
	}
	libraryService, err := library.NewService(library.ServiceConfig{
		Store: records.NewHashStore(),
		Meta:  usermeta.NewStore(),
		TxLog: writer,
	})
	if err != nil {
		t.Fatalf("failed to build library service: %v", err)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamSearchPage))
	}))
	t.Cleanup(upstream.Close)
	fetchService, err := fetch.NewService(fetch.ServiceConfig{BaseURL: upstream.URL, TxLog: writer})
	if err != nil {
		t.Fatalf("failed to build fetch service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Users:   usersService,
		Tokens:  tokens,
		Library: libraryService,
		Fetch:   fetchService,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func obtainToken(t *testing.T, handler http.Handler, path string, credentials map[string]string) string {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, path, "", credentials)
	if recorder.Code != http.StatusOK {
		t.Fatalf("auth request to %s failed with %d: %s", path, recorder.Code, recorder.Body.String())
	}
	token, _ := decodeBody(t, recorder)["access_token"].(string)
	if token == "" {
		t.Fatalf("expected access token in response")
	}
	return token
}

func registerUser(t *testing.T, handler http.Handler, username string) string {
	t.Helper()
	return obtainToken(t, handler, "/auth/register", map[string]string{"username": username, "password": "hunter22"})
}

func adminToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	return obtainToken(t, handler, "/auth/login", map[string]string{"username": "admin", "password": "admin"})
}

func sampleRecordBody(id, title string) map[string]any {
	return map[string]any{"records": []map[string]any{{
		"id":        id,
		"title":     title,
		"author":    "Frank Herbert",
		"fetchedAt": 1000,
	}}}
}

func TestProtectedRoutesRequireAuthorization(t *testing.T) {
	handler := newTestHandler(t)
	recorder := doJSON(t, handler, http.MethodGet, "/records", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler := newTestHandler(t)
	recorder := doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d", recorder.Code)
	}
}

func TestRegisterConflictOnDuplicateUsername(t *testing.T) {
	handler := newTestHandler(t)
	registerUser(t, handler, "alice")
	recorder := doJSON(t, handler, http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "password": "hunter22"})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", recorder.Code)
	}
}

func TestGuestCannotStoreRecords(t *testing.T) {
	handler := newTestHandler(t)
	recorder := doJSON(t, handler, http.MethodPost, "/auth/guest", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("guest auth failed: %d", recorder.Code)
	}
	token, _ := decodeBody(t, recorder)["access_token"].(string)

	recorder = doJSON(t, handler, http.MethodPost, "/records", token, sampleRecordBody("B1", "Dune"))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for guest store, got %d", recorder.Code)
	}
}

func TestStoreSearchFavoriteFlow(t *testing.T) {
	handler := newTestHandler(t)
	token := registerUser(t, handler, "alice")

	recorder := doJSON(t, handler, http.MethodPost, "/records", token, sampleRecordBody("B1", "Dune"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("store failed: %d %s", recorder.Code, recorder.Body.String())
	}
	if stored := decodeBody(t, recorder)["stored"].(float64); stored != 1 {
		t.Fatalf("expected 1 stored, got %v", stored)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/search/title?q=dune", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("title search failed: %d", recorder.Code)
	}
	results := decodeBody(t, recorder)["records"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 search result, got %d", len(results))
	}

	recorder = doJSON(t, handler, http.MethodPost, "/records/B1/favorite", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("favorite toggle failed: %d", recorder.Code)
	}
	if favorite := decodeBody(t, recorder)["favorite"].(bool); !favorite {
		t.Fatalf("expected first toggle to favorite")
	}

	recorder = doJSON(t, handler, http.MethodPut, "/records/B1/note", token, map[string]string{"note": "read again"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("note update failed: %d", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/favorites", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("favorites listing failed: %d", recorder.Code)
	}
	favorites := decodeBody(t, recorder)["records"].([]any)
	if len(favorites) != 1 {
		t.Fatalf("expected 1 favorite, got %d", len(favorites))
	}

	recorder = doJSON(t, handler, http.MethodGet, "/metadata", token, nil)
	metadata := decodeBody(t, recorder)["metadata"].([]any)
	if len(metadata) != 1 {
		t.Fatalf("expected 1 metadata entry, got %d", len(metadata))
	}
}

func TestDeleteRecordMissingReturns404(t *testing.T) {
	handler := newTestHandler(t)
	token := registerUser(t, handler, "alice")
	recorder := doJSON(t, handler, http.MethodDelete, "/records/nope", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown record, got %d", recorder.Code)
	}
}

func TestSearchTimeValidatesBounds(t *testing.T) {
	handler := newTestHandler(t)
	token := registerUser(t, handler, "alice")
	recorder := doJSON(t, handler, http.MethodGet, "/search/time?start=abc&end=5", token, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid bounds, got %d", recorder.Code)
	}
}

func TestOnlineSearchReturnsParsedRecords(t *testing.T) {
	handler := newTestHandler(t)
	token := registerUser(t, handler, "alice")
	recorder := doJSON(t, handler, http.MethodPost, "/search/online", token, map[string]string{"query": "dune"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("online search failed: %d %s", recorder.Code, recorder.Body.String())
	}
	results := decodeBody(t, recorder)["records"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 parsed record, got %d", len(results))
	}
	first := results[0].(map[string]any)
	if first["id"] != "OL45883W" || first["title"] != "Dune" {
		t.Fatalf("unexpected parsed record %v", first)
	}
}

func TestAdminEndpointsForbiddenForRegularUsers(t *testing.T) {
	handler := newTestHandler(t)
	token := registerUser(t, handler, "alice")
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/admin/log"},
		{http.MethodPost, "/admin/rebuild"},
		{http.MethodGet, "/admin/stats"},
		{http.MethodGet, "/admin/analytics"},
	} {
		recorder := doJSON(t, handler, route.method, route.path, token, nil)
		if recorder.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for %s %s, got %d", route.method, route.path, recorder.Code)
		}
	}
}

func TestAdminRebuildAndStatsFlow(t *testing.T) {
	handler := newTestHandler(t)
	userToken := registerUser(t, handler, "alice")
	admin := adminToken(t, handler)

	if recorder := doJSON(t, handler, http.MethodPost, "/records", userToken, sampleRecordBody("B1", "Dune")); recorder.Code != http.StatusOK {
		t.Fatalf("store failed: %d", recorder.Code)
	}
	if recorder := doJSON(t, handler, http.MethodDelete, "/records/B1", userToken, nil); recorder.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", recorder.Code)
	}

	recorder := doJSON(t, handler, http.MethodGet, "/admin/log", admin, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("log read failed: %d", recorder.Code)
	}
	lines := decodeBody(t, recorder)["lines"].([]any)
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	recorder = doJSON(t, handler, http.MethodPost, "/admin/rebuild", admin, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("rebuild failed: %d %s", recorder.Code, recorder.Body.String())
	}
	tally := decodeBody(t, recorder)
	if tally["inserts"].(float64) != 1 || tally["deletes"].(float64) != 1 || tally["errors"].(float64) != 0 {
		t.Fatalf("unexpected rebuild tally %v", tally)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/admin/stats", admin, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", recorder.Code)
	}
	stats := decodeBody(t, recorder)
	if stats["records"].(float64) != 0 {
		t.Fatalf("expected empty store after replay, got %v", stats["records"])
	}

	recorder = doJSON(t, handler, http.MethodGet, "/admin/analytics?top=5&days=7", admin, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("analytics failed: %d", recorder.Code)
	}
}
