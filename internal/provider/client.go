package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Backoff window applied to the primary provider after a failure.
const primaryBackoff = 60 * time.Second

// Client binds a role to a primary provider with an optional fallback. After
// a primary failure the client routes straight to the fallback for a fixed
// backoff window instead of re-probing a dead endpoint on every request.
// Backoff state is per client instance, never shared.
type Client struct {
	role     Role
	primary  Provider
	fallback Provider
	logger   *zap.Logger

	mu           sync.Mutex
	backoffUntil time.Time
	now          func() time.Time
}

// NewClient builds a role-bound client. fallback may be nil.
func NewClient(role Role, primary, fallback Provider, logger *zap.Logger) *Client {
	return &Client{
		role:     role,
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// Role returns the role this client speaks with.
func (c *Client) Role() Role { return c.role }

// Reason sends a single prompt and returns the raw model text. When every
// provider fails the error is returned to the caller; there is no silent
// empty-string fallback.
func (c *Client) Reason(ctx context.Context, prompt string, showThinking bool) (string, error) {
	req := &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: c.role.SystemPrompt()},
			{Role: "user", Content: prompt},
		},
		Temperature:  c.role.Temperature(),
		MaxTokens:    1000,
		ShowThinking: showThinking,
	}

	var lastErr error
	if c.primaryUsable() {
		resp, err := c.primary.Chat(ctx, req)
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
		c.enterBackoff()
		c.logger.Warn("primary provider failed, backing off",
			zap.String("role", string(c.role)),
			zap.String("provider", c.primary.ID()),
			zap.Duration("backoff", primaryBackoff),
			zap.Error(err))
	}

	if c.fallback != nil {
		resp, err := c.fallback.Chat(ctx, req)
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
		c.logger.Warn("fallback provider failed",
			zap.String("role", string(c.role)),
			zap.String("provider", c.fallback.ID()),
			zap.Error(err))
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured for role %s", c.role)
	}
	return "", fmt.Errorf("model unavailable for role %s: %w", c.role, lastErr)
}

func (c *Client) primaryUsable() bool {
	if c.primary == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backoffUntil.IsZero() {
		return true
	}
	if c.now().Before(c.backoffUntil) {
		return false
	}
	c.backoffUntil = time.Time{}
	return true
}

func (c *Client) enterBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoffUntil = c.now().Add(primaryBackoff)
}
