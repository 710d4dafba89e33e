package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProviderCreator creates LLM clients from auth profiles.
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMClient, error)
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider based on auth profile
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMClient, error) {
	switch profile.Provider {
	case "anthropic":
		var opts []anthropicoption.RequestOption
		if profile.BaseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(profile.BaseURL))
		}
		return NewAnthropicProvider(profile.APIKey, opts...), nil
	case "openai":
		var opts []openaioption.RequestOption
		if profile.BaseURL != "" {
			opts = append(opts, openaioption.WithBaseURL(profile.BaseURL))
		}
		return NewOpenAIProvider(profile.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// ErrNoProfiles is returned when a failover client has no usable profile.
var ErrNoProfiles = errors.New("at least one auth profile is required")

// FailoverClient opens streams through a prioritized list of auth profiles.
// A failing profile is put in cooldown and the next one is tried; a
// non-retryable error stops the search.
type FailoverClient struct {
	factory    ProviderCreator
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger

	mu       sync.RWMutex
	profiles []AuthProfile
}

// FailoverOptions configures a FailoverClient.
type FailoverOptions struct {
	Factory    ProviderCreator
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zerolog.Logger
}

// NewFailoverClient creates a client over profiles.
func NewFailoverClient(profiles []AuthProfile, opts FailoverOptions) (*FailoverClient, error) {
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}
	if opts.Factory == nil {
		opts.Factory = &ProviderFactory{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}

	return &FailoverClient{
		factory:    opts.Factory,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     base.With().Str("component", "llm_failover").Logger(),
		profiles:   append([]AuthProfile(nil), profiles...),
	}, nil
}

// Provider returns the provider name
func (c *FailoverClient) Provider() string {
	return "failover"
}

// Profiles returns a snapshot of the profiles with their failure state.
func (c *FailoverClient) Profiles() []AuthProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]AuthProfile(nil), c.profiles...)
}

// StreamResponse opens a stream on the first healthy profile.
func (c *FailoverClient) StreamResponse(ctx context.Context, req LLMRequest) (ResponseStream, error) {
	profiles := c.Profiles()
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	var lastErr error
	for _, profile := range profiles {
		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			c.logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}

		client, err := c.factory.NewProvider(profile)
		if err != nil {
			c.logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create provider")
			lastErr = err
			continue
		}

		stream, err := c.openWithRetry(ctx, client, req)
		if err == nil {
			c.markSuccess(profile.ID)
			return stream, nil
		}

		lastErr = err
		c.logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Auth profile failed")
		c.markFailure(profile.ID)

		if !IsRetryableError(err) {
			return nil, err
		}
	}

	if lastErr == nil {
		return nil, fmt.Errorf("all auth profiles are in cooldown")
	}
	return nil, fmt.Errorf("all auth profiles failed: %w", lastErr)
}

// openWithRetry opens a stream with exponential backoff.
func (c *FailoverClient) openWithRetry(ctx context.Context, client LLMClient, req LLMRequest) (ResponseStream, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		stream, err := primeStream(client.StreamResponse(ctx, req))
		if err == nil {
			return stream, nil
		}
		lastErr = err

		if !IsRetryableError(err) || attempt == c.maxRetries-1 {
			break
		}

		delay := c.retryDelay * time.Duration(1<<attempt)
		c.logger.Info().Int("attempt", attempt+1).Dur("delay", delay).Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// primeStream reads the first chunk so that errors raised by the provider on
// the initial response count as open failures.
func primeStream(stream ResponseStream, err error) (ResponseStream, error) {
	if err != nil {
		return nil, err
	}
	first, err := stream.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		stream.Close()
		return nil, err
	}
	return &primedStream{ResponseStream: stream, first: first, firstErr: err, pending: true}, nil
}

type primedStream struct {
	ResponseStream
	first    StreamChunk
	firstErr error
	pending  bool
}

func (s *primedStream) Next() (StreamChunk, error) {
	if s.pending {
		s.pending = false
		return s.first, s.firstErr
	}
	return s.ResponseStream.Next()
}

func (c *FailoverClient) markSuccess(profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.profiles {
		if c.profiles[i].ID == profileID {
			c.profiles[i].FailureCount = 0
			c.profiles[i].CooldownUntil = nil
			return
		}
	}
}

func (c *FailoverClient) markFailure(profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.profiles {
		if c.profiles[i].ID == profileID {
			c.profiles[i].FailureCount++
			until := time.Now().UnixMilli() + int64(60000*c.profiles[i].FailureCount)
			c.profiles[i].CooldownUntil = &until
			return
		}
	}
}
