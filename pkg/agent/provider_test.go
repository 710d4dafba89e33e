package agent

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errStream struct{ err error }

func (s errStream) Next() (StreamChunk, error) { return StreamChunk{}, s.err }
func (s errStream) Close() error               { return nil }

type fakeProvider struct {
	id     string
	openFn func() (ResponseStream, error)
}

func (p *fakeProvider) Provider() string { return p.id }

func (p *fakeProvider) StreamResponse(ctx context.Context, req LLMRequest) (ResponseStream, error) {
	return p.openFn()
}

type fakeFactory struct {
	mu        sync.Mutex
	providers map[string]*fakeProvider
	opened    []string
}

func (f *fakeFactory) NewProvider(profile AuthProfile) (LLMClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, profile.ID)
	p, ok := f.providers[profile.ID]
	if !ok {
		return nil, errors.New("unknown profile")
	}
	return p, nil
}

func newFailover(t *testing.T, factory *fakeFactory, profiles ...AuthProfile) *FailoverClient {
	t.Helper()
	nop := zerolog.Nop()
	c, err := NewFailoverClient(profiles, FailoverOptions{
		Factory:    factory,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Logger:     &nop,
	})
	require.NoError(t, err)
	return c
}

func drain(t *testing.T, s ResponseStream) string {
	t.Helper()
	var out string
	for {
		c, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out += c.Content
	}
}

func TestNewFailoverClient_NoProfiles(t *testing.T) {
	_, err := NewFailoverClient(nil, FailoverOptions{})
	assert.ErrorIs(t, err, ErrNoProfiles)
}

func TestFailoverClient_UsesPriorityOrder(t *testing.T) {
	factory := &fakeFactory{providers: map[string]*fakeProvider{
		"primary":   {id: "primary", openFn: func() (ResponseStream, error) { return &sliceStream{chunks: textChunks("from ", "primary")}, nil }},
		"secondary": {id: "secondary", openFn: func() (ResponseStream, error) { return &sliceStream{chunks: textChunks("secondary")}, nil }},
	}}
	c := newFailover(t, factory,
		AuthProfile{ID: "secondary", Priority: 2},
		AuthProfile{ID: "primary", Priority: 1},
	)

	s, err := c.StreamResponse(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from primary", drain(t, s))
	assert.Equal(t, []string{"primary"}, factory.opened)
	assert.Equal(t, "failover", c.Provider())
}

func TestFailoverClient_FailsOverOnRetryableError(t *testing.T) {
	factory := &fakeFactory{providers: map[string]*fakeProvider{
		// errors surfacing on the first chunk count as open failures
		"primary":   {id: "primary", openFn: func() (ResponseStream, error) { return errStream{errors.New("503 overloaded")}, nil }},
		"secondary": {id: "secondary", openFn: func() (ResponseStream, error) { return &sliceStream{chunks: textChunks("ok")}, nil }},
	}}
	c := newFailover(t, factory,
		AuthProfile{ID: "primary", Priority: 1},
		AuthProfile{ID: "secondary", Priority: 2},
	)

	s, err := c.StreamResponse(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", drain(t, s))

	profiles := c.Profiles()
	for _, p := range profiles {
		if p.ID == "primary" {
			assert.Equal(t, 1, p.FailureCount)
			require.NotNil(t, p.CooldownUntil)
			assert.Greater(t, *p.CooldownUntil, time.Now().UnixMilli())
		}
	}

	// primary is cooling down now
	factory.opened = nil
	_, err = c.StreamResponse(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"secondary"}, factory.opened)
}

func TestFailoverClient_StopsOnNonRetryableError(t *testing.T) {
	factory := &fakeFactory{providers: map[string]*fakeProvider{
		"primary":   {id: "primary", openFn: func() (ResponseStream, error) { return nil, errors.New("invalid api key") }},
		"secondary": {id: "secondary", openFn: func() (ResponseStream, error) { return &sliceStream{}, nil }},
	}}
	c := newFailover(t, factory,
		AuthProfile{ID: "primary", Priority: 1},
		AuthProfile{ID: "secondary", Priority: 2},
	)

	_, err := c.StreamResponse(context.Background(), LLMRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, []string{"primary"}, factory.opened)
}

func TestFailoverClient_AllProfilesFail(t *testing.T) {
	var attempts int
	factory := &fakeFactory{providers: map[string]*fakeProvider{
		"only": {id: "only", openFn: func() (ResponseStream, error) {
			attempts++
			return nil, errors.New("429 rate limit")
		}},
	}}
	c := newFailover(t, factory, AuthProfile{ID: "only"})

	_, err := c.StreamResponse(context.Background(), LLMRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all auth profiles failed")
	assert.Equal(t, 2, attempts)

	_, err = c.StreamResponse(context.Background(), LLMRequest{})
	assert.EqualError(t, err, "all auth profiles are in cooldown")
}

func TestProviderFactory_Unsupported(t *testing.T) {
	f := &ProviderFactory{}
	_, err := f.NewProvider(AuthProfile{Provider: "gemini"})
	assert.Error(t, err)

	client, err := f.NewProvider(AuthProfile{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Provider())

	client, err = f.NewProvider(AuthProfile{Provider: "anthropic", APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", client.Provider())
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(errors.New("upstream returned 502")))
	assert.True(t, IsRetryableError(errors.New("read: connection reset by peer")))
	assert.False(t, IsRetryableError(errors.New("invalid request")))
}
