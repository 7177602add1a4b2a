package oracle

import (
	"context"
	"fmt"

	"github.com/harborview-health/voice-scheduler/pkg/logging"
)

// FallbackClient tries a primary provider and retries once against a
// secondary one. The dialogue engine already degrades to heuristics when the
// oracle is unreachable, so one retry on a different provider is the whole
// policy; there is no backoff loop.
type FallbackClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackClient wraps primary with fallback. A nil fallback degenerates
// to the primary alone.
func NewFallbackClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary oracle provider failed",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)

	if c.fallback == nil {
		return LLMResponse{}, fmt.Errorf("oracle: primary provider failed: %w", err)
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback oracle provider also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return LLMResponse{}, fmt.Errorf("oracle: both providers failed: %w", fallbackErr)
	}

	c.logger.Info("fallback oracle provider answered after primary failure")
	return fallbackResp, nil
}
