package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/core/engine"
	"github.com/vietddude/avatar/internal/health"
	"github.com/vietddude/avatar/internal/infra/storage/memory"
	"github.com/vietddude/avatar/internal/resolver"
)

type mockFetcher struct{}

func (mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "https://api.github.com/users/github-username" {
		return []byte(`{"avatar_url":"https://mocked.url/foo.jpg"}`), nil
	}
	return nil, fmt.Errorf("mocked error for %s", url)
}

func newTestServer(t *testing.T) (*Server, *memory.FailedSourceRepo) {
	t.Helper()
	repo := memory.NewFailedSourceRepo()
	res := resolver.New(resolver.Config{}, repo, mockFetcher{}, nil, nil)
	return NewServer(res, health.NewMonitor(repo), 0, nil), repo
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestResolveQuery(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/avatar?name=Marco&size=40", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var v engine.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, domain.StateResolved, v.State)
	assert.Equal(t, "M", v.Text)
	assert.Equal(t, "40px", v.HostStyle["width"])
}

func TestResolveBody_Async(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/avatar", `{"githubId":"github-username","size":50}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var v engine.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "https://mocked.url/foo.jpg&s=50", v.Src)
	require.NotNil(t, v.Source)
	assert.Equal(t, domain.SourceGitHub, v.Source.Type)
}

func TestResolve_BadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/avatar?nickname=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/avatar", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/avatar", `{"name":["a"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailedEndpoints(t *testing.T) {
	s, repo := newTestServer(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.Add(ctx, &domain.FailedSource{
		Key: "google:a", SourceType: domain.SourceGoogle, SourceID: "a", Reason: domain.FailureRender, FailedAt: now,
	}))
	require.NoError(t, repo.Add(ctx, &domain.FailedSource{
		Key: "github:b", SourceType: domain.SourceGitHub, SourceID: "b", Reason: domain.FailureFetch, FailedAt: now.Add(time.Second),
	}))

	rec := do(t, s, http.MethodGet, "/v1/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Failed []domain.FailedSource `json:"failed"`
		Count  int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "google:a", list.Failed[0].Key)

	rec = do(t, s, http.MethodDelete, "/v1/failed/google:a", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	n, _ := repo.Count(ctx)
	assert.Equal(t, 1, n)

	rec = do(t, s, http.MethodDelete, "/v1/failed", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	n, _ = repo.Count(ctx)
	assert.Equal(t, 0, n)
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/health/detailed", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"system_status":"healthy"`)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "avatar_active_sessions")
}
