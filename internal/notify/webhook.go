package notify

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xtradermorph/traders-journal-sub000/internal/config"
)

const (
	achievementsPath = "/achievements"
	maxRetries       = 3
)

// WebhookNotifier posts achievements to the notification dispatch service,
// which turns them into emails or push messages.
type WebhookNotifier struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff func(attempt int) time.Duration
}

// ensure WebhookNotifier implements the interface
var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier for the configured dispatch service.
func NewWebhookNotifier(cfg *config.Notifier, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(time.Duration(cfg.Timeout) * time.Second)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &WebhookNotifier{
		client:  client,
		apiKey:  cfg.ApiKey,
		logger:  logger.Named("notifier"),
		limiter: limiter,
		backoff: exponentialBackoff,
	}
}

// exponentialBackoff waits 1s, 2s, 4s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// NotifyTierChange sends a single achievement to the dispatch service.
func (n *WebhookNotifier) NotifyTierChange(ctx context.Context, a Achievement) error {
	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(a)
	if n.apiKey != "" {
		req.SetAuthToken(n.apiKey)
	}

	if _, err := n.doRequest(ctx, http.MethodPost, achievementsPath, req); err != nil {
		return fmt.Errorf("failed to send achievement for trader %s: %w", a.TraderID, err)
	}

	n.logger.Info("Achievement notification sent",
		zap.String("trader_id", a.TraderID),
		zap.Stringer("previous_tier", a.PreviousTier),
		zap.Stringer("new_tier", a.NewTier))
	return nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (n *WebhookNotifier) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		n.logger.Debug("Executing request", zap.String("method", method), zap.String("url", n.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
			err = fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		} else {
			// Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry || i == maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = n.backoff(i)
		}

		n.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed: %w", err)
}
