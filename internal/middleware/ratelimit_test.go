package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimit(t *testing.T) {
	tests := []struct {
		name          string
		env           string
		calls         int
		limit         int
		expectedAllow bool
	}{
		{"Test Environment Bypass", "test", 5, 1, true},
		{"Development Environment Bypass", "development", 5, 1, true},
		{"Production Under Limit", "production", 2, 3, true},
		{"Production Over Limit", "production", 4, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

			var allowed bool
			var err error
			for i := 0; i < tt.calls; i++ {
				allowed, err = CheckRateLimit(context.Background(), rdb, "vote", "voter:1", tt.limit, time.Minute)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedAllow, allowed)
		})
	}
}

func TestCheckRateLimit_SetsWindow(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	_, err := CheckRateLimit(context.Background(), rdb, "vote", "voter:1", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("rl:vote:voter:1"))

	mr.FastForward(2 * time.Minute)
	allowed, err := CheckRateLimit(context.Background(), rdb, "vote", "voter:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitWithPolicy_RedisDown(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	for _, tc := range []struct {
		name   string
		policy FailPolicy
		status int
	}{
		{"fail open", FailOpen, http.StatusOK},
		{"fail closed", FailClosed, http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/vote", RateLimitWithPolicy(nil, 1, time.Minute, tc.policy, "vote"), func(c *fiber.Ctx) error {
				return c.SendStatus(http.StatusOK)
			})
			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/vote", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRateLimit_KeysByVoter(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New()
	app.Post("/vote", func(c *fiber.Ctx) error {
		c.Locals("voterID", c.Get("X-Voter"))
		return c.Next()
	}, RateLimit(rdb, 1, time.Minute, "vote"), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	send := func(voter string) int {
		req := httptest.NewRequest(http.MethodPost, "/vote", nil)
		req.Header.Set("X-Voter", voter)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send("alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"))
	assert.Equal(t, http.StatusOK, send("bob"))
	assert.True(t, mr.Exists("rl:vote:voter:alice"))
}
