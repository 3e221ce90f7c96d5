package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xtradermorph/traders-journal-sub000/internal/config"
	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
)

// setupTestServer creates a new test server and a WebhookNotifier configured to use it.
func setupTestServer(handler http.Handler) (*WebhookNotifier, *httptest.Server) {
	server := httptest.NewServer(handler)

	n := &WebhookNotifier{
		client:  resty.New().SetBaseURL(server.URL),
		apiKey:  "test_api_key",
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		backoff: func(int) time.Duration { return time.Millisecond },
	}

	return n, server
}

func sampleAchievement() Achievement {
	winRate := 91.5
	return Achievement{
		TraderID:     "trader-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PreviousTier: medal.Platinum,
		NewTier:      medal.Diamond,
		WinRate:      &winRate,
		TradeCount:   200,
		OccurredAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNotifyTierChange(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/achievements", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer test_api_key", r.Header.Get("Authorization"))

			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "trader-1", body["trader_id"])
			assert.Equal(t, "platinum", body["previous_tier"])
			assert.Equal(t, "diamond", body["new_tier"])
			assert.Equal(t, 91.5, body["win_rate"])

			w.WriteHeader(http.StatusAccepted)
		})

		n, server := setupTestServer(handler)
		defer server.Close()

		err := n.NotifyTierChange(context.Background(), sampleAchievement())
		assert.NoError(t, err)
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		n, server := setupTestServer(handler)
		defer server.Close()

		err := n.NotifyTierChange(context.Background(), sampleAchievement())
		assert.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("GivesUpAfterMaxRetries", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})

		n, server := setupTestServer(handler)
		defer server.Close()

		err := n.NotifyTierChange(context.Background(), sampleAchievement())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send achievement")
		assert.Contains(t, err.Error(), "500")
		assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
	})

	t.Run("ClientErrorNotRetried", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad payload"}`))
		})

		n, server := setupTestServer(handler)
		defer server.Close()

		err := n.NotifyTierChange(context.Background(), sampleAchievement())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad payload")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		n, server := setupTestServer(handler)
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := n.NotifyTierChange(ctx, sampleAchievement())
		assert.Error(t, err)
	})
}

func TestNewWebhookNotifier(t *testing.T) {
	cfg := &config.Notifier{URL: "http://notify.local", ApiKey: "k", RateLimit: 5, RateLimitBurst: 1, Timeout: 3}
	n := NewWebhookNotifier(cfg, zap.NewNop())
	assert.NotNil(t, n)
	assert.Equal(t, "k", n.apiKey)
	assert.Equal(t, "http://notify.local", n.client.BaseURL)
	assert.Equal(t, time.Second, n.backoff(0))
	assert.Equal(t, 4*time.Second, n.backoff(2))
}

func TestAchievement_Upgrade(t *testing.T) {
	a := sampleAchievement()
	assert.True(t, a.Upgrade())
	a.PreviousTier, a.NewTier = medal.Gold, medal.Silver
	assert.False(t, a.Upgrade())
}

func TestNopNotifier(t *testing.T) {
	n := NewNopNotifier(zap.NewNop())
	assert.NoError(t, n.NotifyTierChange(context.Background(), sampleAchievement()))
}
