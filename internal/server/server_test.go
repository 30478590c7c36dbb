package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"pulse/internal/config"
	"pulse/internal/models"
	"pulse/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "test",
		JWTSecret:              testSecret,
		Port:                   "0",
		VoteMaxRetries:         1,
		VoteRateLimitPerMinute: 60,
		FeedSnapshotLimit:      0,
	}
}

func newTestServer(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	s, err := NewServerWithDeps(testConfig(), db, nil)
	require.NoError(t, err)
	return s.NewApp(), db
}

func tokenFor(t *testing.T, voterID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": voterID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, app *fiber.App, method, path, voterID string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if voterID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, voterID))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type voteBody struct {
	Upvotes            int64  `json:"upvotes"`
	Downvotes          int64  `json:"downvotes"`
	ResultingDirection string `json:"resultingDirection"`
}

func TestCastVote_ToggleAndFlip(t *testing.T) {
	app, db := newTestServer(t)
	post := testutil.SeedPost(t, db, 1, 0, 0, time.Now())

	steps := []struct {
		direction string
		want      voteBody
	}{
		{"up", voteBody{1, 0, "up"}},
		{"up", voteBody{0, 0, "none"}},
		{"down", voteBody{0, 1, "down"}},
		{"up", voteBody{1, 0, "up"}},
		{"down", voteBody{0, 1, "down"}},
		{"down", voteBody{0, 0, "none"}},
	}
	for i, step := range steps {
		resp := doJSON(t, app, http.MethodPost, "/api/vote", "alice", map[string]interface{}{
			"subjectId": post.ID,
			"direction": step.direction,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "step %d", i)
		assert.Equal(t, step.want, decode[voteBody](t, resp), "step %d", i)
	}
}

func TestCastVote_Errors(t *testing.T) {
	app, db := newTestServer(t)
	post := testutil.SeedPost(t, db, 1, 0, 0, time.Now())

	tests := []struct {
		name       string
		voter      string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"invalid direction", "alice", map[string]interface{}{"subjectId": post.ID, "direction": "sideways"}, http.StatusBadRequest, models.CodeInvalidDirection},
		{"missing direction", "alice", map[string]interface{}{"subjectId": post.ID}, http.StatusBadRequest, models.CodeInvalidDirection},
		{"unknown subject", "alice", map[string]interface{}{"subjectId": 9999, "direction": "up"}, http.StatusNotFound, models.CodeSubjectNotFound},
		{"unknown subject type", "alice", map[string]interface{}{"subjectType": "poll", "subjectId": post.ID, "direction": "up"}, http.StatusBadRequest, models.CodeValidation},
		{"voter mismatch", "alice", map[string]interface{}{"subjectId": post.ID, "voterId": "mallory", "direction": "up"}, http.StatusForbidden, models.CodeForbidden},
		{"no token", "", map[string]interface{}{"subjectId": post.ID, "direction": "up"}, http.StatusUnauthorized, models.CodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/api/vote", tt.voter, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decode[models.ErrorResponse](t, resp).Code)
		})
	}

	var fresh models.Post
	require.NoError(t, db.First(&fresh, post.ID).Error)
	assert.Zero(t, fresh.Upvotes)
	assert.Zero(t, fresh.Downvotes)
}

func TestCastVote_MatchingVoterIDAccepted(t *testing.T) {
	app, db := newTestServer(t)
	post := testutil.SeedPost(t, db, 1, 0, 0, time.Now())

	resp := doJSON(t, app, http.MethodPost, "/api/vote", "alice", map[string]interface{}{
		"subjectType": "post", "subjectId": post.ID, "voterId": "alice", "direction": "down",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, voteBody{0, 1, "down"}, decode[voteBody](t, resp))
}

func TestRouteVotes(t *testing.T) {
	app, db := newTestServer(t)
	post := testutil.SeedPost(t, db, 1, 0, 0, time.Now())
	comment := testutil.SeedComment(t, db, post.ID, 0, 0, time.Now())

	resp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/comments/%d/vote", comment.ID), "bob", map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, voteBody{1, 0, "up"}, decode[voteBody](t, resp))

	// same numeric id, different subject
	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d/vote", post.ID), "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.DirectionNone, decode[VoteResponse](t, resp).Direction)

	resp = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", post.ID), "bob", map[string]string{"direction": "down"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d/vote", post.ID), "bob", nil)
	got := decode[VoteResponse](t, resp)
	assert.Equal(t, models.DirectionDown, got.Direction)
	assert.Equal(t, models.SubjectPost, got.SubjectType)

	resp = doJSON(t, app, http.MethodGet, "/api/comments/4242/vote", "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/posts/abc/vote", "bob", map[string]string{"direction": "up"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid ID", decode[models.ErrorResponse](t, resp).Error)
}

func TestCastVote_ConcurrentDistinctVoters(t *testing.T) {
	app, db := newTestServer(t)
	post := testutil.SeedPost(t, db, 1, 0, 0, time.Now())

	const voters = 20
	tokens := make([]string, voters)
	for i := range tokens {
		tokens[i] = tokenFor(t, "voter-"+strconv.Itoa(i))
	}

	var wg sync.WaitGroup
	statuses := make(chan int, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, _ := json.Marshal(map[string]interface{}{"subjectId": post.ID, "direction": "up"})
			req := httptest.NewRequest(http.MethodPost, "/api/vote", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+tokens[i])
			resp, err := app.Test(req, -1)
			if err != nil {
				statuses <- 0
				return
			}
			_ = resp.Body.Close()
			statuses <- resp.StatusCode
		}(i)
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
	var fresh models.Post
	require.NoError(t, db.First(&fresh, post.ID).Error)
	assert.Equal(t, int64(voters), fresh.Upvotes)
	assert.Zero(t, fresh.Downvotes)

	var records int64
	require.NoError(t, db.Model(&models.VoteRecord{}).Count(&records).Error)
	assert.Equal(t, int64(voters), records)
}

func TestGetSubjects_Policies(t *testing.T) {
	app, db := newTestServer(t)
	now := time.Now()
	// net 8, created 3.5h ago
	a := testutil.SeedPost(t, db, 1, 10, 2, now.Add(-3*time.Hour-30*time.Minute))
	// net 5, created 1.5h ago
	b := testutil.SeedPost(t, db, 1, 5, 0, now.Add(-90*time.Minute))
	// net -4, created 30m ago
	c := testutil.SeedPost(t, db, 2, 1, 5, now.Add(-30*time.Minute))

	ids := func(resp *http.Response) []uint {
		items := decode[[]models.Subject](t, resp)
		out := make([]uint, len(items))
		for i, it := range items {
			out[i] = it.ID
		}
		return out
	}

	tests := []struct {
		query string
		want  []uint
	}{
		{"?policy=new", []uint{c.ID, b.ID, a.ID}},
		{"?policy=top", []uint{a.ID, b.ID, c.ID}},
		// hot: a=8/3, b=5/1, c=-4/1
		{"?policy=hot", []uint{b.ID, a.ID, c.ID}},
		{"", []uint{b.ID, a.ID, c.ID}},
		{"?sort=top", []uint{a.ID, b.ID, c.ID}},
		{"?policy=top&limit=1&offset=1", []uint{b.ID}},
		{"?policy=top&forumId=2", []uint{c.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodGet, "/api/subjects"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, ids(resp))
		})
	}

	resp := doJSON(t, app, http.MethodGet, "/api/subjects?policy=top&limit=1", "", nil)
	assert.Equal(t, "3", resp.Header.Get("X-Total-Count"))
	assert.Equal(t, "top", resp.Header.Get("X-Ranking-Policy"))

	resp = doJSON(t, app, http.MethodGet, "/api/subjects?policy=controversial", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/subjects?forumId=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/subjects?type=comment", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSubjects_ViewerDirection(t *testing.T) {
	app, db := newTestServer(t)
	post := testutil.SeedPost(t, db, 1, 0, 0, time.Now())
	other := testutil.SeedPost(t, db, 1, 0, 0, time.Now())

	resp := doJSON(t, app, http.MethodPost, "/api/vote", "carol", map[string]interface{}{"subjectId": post.ID, "direction": "up"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/forums/1/posts?sort=top", "carol", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]models.Subject](t, resp)
	require.Len(t, items, 2)
	assert.Equal(t, post.ID, items[0].ID)
	assert.Equal(t, int64(1), items[0].Upvotes)
	assert.Equal(t, models.DirectionUp, items[0].ViewerDirection)
	assert.Equal(t, other.ID, items[1].ID)
	assert.Equal(t, models.DirectionNone, items[1].ViewerDirection)

	resp = doJSON(t, app, http.MethodGet, "/api/forums/1/posts?sort=top", "", nil)
	items = decode[[]models.Subject](t, resp)
	assert.Empty(t, items[0].ViewerDirection)
}

func TestGetPostComments(t *testing.T) {
	app, db := newTestServer(t)
	post := testutil.SeedPost(t, db, 1, 0, 0, time.Now())
	older := testutil.SeedComment(t, db, post.ID, 3, 0, time.Now().Add(-2*time.Hour))
	newer := testutil.SeedComment(t, db, post.ID, 0, 0, time.Now())

	resp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments?sort=new", post.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]models.Subject](t, resp)
	require.Len(t, items, 2)
	assert.Equal(t, []uint{newer.ID, older.ID}, []uint{items[0].ID, items[1].ID})
	assert.Equal(t, models.SubjectComment, items[0].Kind)

	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/subjects?type=comments&postId=%d&policy=top", post.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items = decode[[]models.Subject](t, resp)
	assert.Equal(t, older.ID, items[0].ID)
}

func TestHealthChecks(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doJSON(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]interface{}](t, resp)
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestFeedWebSocket_UnavailableWithoutRedis(t *testing.T) {
	app, _ := newTestServer(t)
	resp := doJSON(t, app, http.MethodGet, "/api/ws/feed", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetFeatureFlags(t *testing.T) {
	app, _ := newTestServer(t)
	resp := doJSON(t, app, http.MethodGet, "/api/feature-flags", "dave", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Flags map[string]bool `json:"flags"`
	}](t, resp)
	assert.True(t, body.Flags["vote_events"])
	assert.True(t, body.Flags["feed_cache"])
}
