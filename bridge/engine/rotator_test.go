package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

func newTestRotator(provider ports.Provider, cfg RotatorConfig) (*CredentialRotator, *memKV) {
	kv := newMemKV()
	ledger := NewCooldownLedger(kv, zerolog.Nop())
	return NewCredentialRotator(provider, ledger, cfg, zerolog.Nop()), kv
}

func quotaError() error {
	return &ports.ProviderError{StatusCode: 429, Code: "RESOURCE_EXHAUSTED", Message: "quota exceeded"}
}

func overloadError() error {
	return &ports.ProviderError{StatusCode: 503, Code: "UNAVAILABLE", Message: "model overloaded"}
}

func TestRotator_FirstCredentialSucceeds(t *testing.T) {
	provider := &scriptedProvider{
		generate: func(call int, credential string, in ports.PromptInput) (ports.Completion, error) {
			return textCompletion("hello"), nil
		},
	}
	rotator, kv := newTestRotator(provider, DefaultRotatorConfig())

	completion, err := rotator.Invoke(context.Background(), "model-x", ports.PromptInput{}, []string{"first", "second"})

	require.NoError(t, err)
	assert.Equal(t, textCompletion("hello"), completion)
	assert.Equal(t, []string{"first"}, provider.calls)
	// The ledger is never touched on the happy path.
	assert.Zero(t, kv.setCalls)
	assert.Zero(t, kv.getCalls)
}

func TestRotator_FailsOverOnQuotaError(t *testing.T) {
	provider := &scriptedProvider{
		generate: func(call int, credential string, in ports.PromptInput) (ports.Completion, error) {
			if credential == "exhausted" {
				return ports.Completion{}, quotaError()
			}
			return textCompletion("from second"), nil
		},
	}
	rotator, kv := newTestRotator(provider, DefaultRotatorConfig())

	completion, err := rotator.Invoke(context.Background(), "model-x", ports.PromptInput{}, []string{"exhausted", "healthy"})

	require.NoError(t, err)
	assert.Equal(t, textCompletion("from second"), completion)
	assert.Equal(t, []string{"exhausted", "healthy"}, provider.calls)

	// Exactly one ledger entry, for the failed credential, with the long cooldown.
	require.Equal(t, 1, kv.setCalls)
	entry, ok := kv.items[cooldownKeyPrefix+hashCredential("exhausted")]
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, entry.ttl)
	_, ok = kv.items[cooldownKeyPrefix+hashCredential("healthy")]
	assert.False(t, ok)
}

func TestRotator_OverloadGetsShortCooldown(t *testing.T) {
	provider := &scriptedProvider{
		generate: func(call int, credential string, in ports.PromptInput) (ports.Completion, error) {
			if call == 0 {
				return ports.Completion{}, overloadError()
			}
			return textCompletion("ok"), nil
		},
	}
	rotator, kv := newTestRotator(provider, DefaultRotatorConfig())

	_, err := rotator.Invoke(context.Background(), "model-x", ports.PromptInput{}, []string{"a", "b"})

	require.NoError(t, err)
	entry, ok := kv.items[cooldownKeyPrefix+hashCredential("a")]
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, entry.ttl)
}

func TestRotator_AllCredentialsExhausted(t *testing.T) {
	provider := &scriptedProvider{
		generate: func(call int, credential string, in ports.PromptInput) (ports.Completion, error) {
			return ports.Completion{}, quotaError()
		},
	}
	rotator, kv := newTestRotator(provider, DefaultRotatorConfig())
	candidates := []string{"a", "b", "c"}

	_, err := rotator.Invoke(context.Background(), "model-x", ports.PromptInput{}, candidates)

	require.ErrorIs(t, err, ErrAllCredentialsExhausted)
	assert.Len(t, provider.calls, 3)
	// One ledger entry per candidate.
	assert.Len(t, kv.items, 3)
	for _, credential := range candidates {
		_, ok := kv.items[cooldownKeyPrefix+hashCredential(credential)]
		assert.True(t, ok)
	}

	// Repeating the scenario yields the same error and the same end state.
	_, err = rotator.Invoke(context.Background(), "model-x", ports.PromptInput{}, candidates)
	require.ErrorIs(t, err, ErrAllCredentialsExhausted)
	assert.Len(t, kv.items, 3)
}

func TestRotator_NonCapacityErrorAbortsRotation(t *testing.T) {
	authErr := &ports.ProviderError{StatusCode: 401, Code: "UNAUTHENTICATED", Message: "invalid credential"}
	provider := &scriptedProvider{
		generate: func(call int, credential string, in ports.PromptInput) (ports.Completion, error) {
			return ports.Completion{}, authErr
		},
	}
	rotator, kv := newTestRotator(provider, DefaultRotatorConfig())

	_, err := rotator.Invoke(context.Background(), "model-x", ports.PromptInput{}, []string{"a", "b", "c"})

	require.Error(t, err)
	var pe *ports.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 401, pe.StatusCode)
	// No failover, no ledger writes for untried candidates.
	assert.Len(t, provider.calls, 1)
	assert.Zero(t, kv.setCalls)
}

func TestRotator_EmptyCandidateList(t *testing.T) {
	provider := &scriptedProvider{
		generate: func(call int, credential string, in ports.PromptInput) (ports.Completion, error) {
			return textCompletion("unreachable"), nil
		},
	}
	rotator, _ := newTestRotator(provider, DefaultRotatorConfig())

	_, err := rotator.Invoke(context.Background(), "model-x", ports.PromptInput{}, nil)

	require.ErrorIs(t, err, ErrNoCandidates)
	assert.Empty(t, provider.calls)
}

func TestRotator_PrecheckSkipsCoolingCredentials(t *testing.T) {
	provider := &scriptedProvider{
		generate: func(call int, credential string, in ports.PromptInput) (ports.Completion, error) {
			return textCompletion("ok"), nil
		},
	}
	cfg := DefaultRotatorConfig()
	cfg.PrecheckReadiness = true
	rotator, _ := newTestRotator(provider, cfg)
	ctx := context.Background()

	rotator.ledger.MarkFailed(ctx, "cooling", time.Minute)

	_, err := rotator.Invoke(ctx, "model-x", ports.PromptInput{}, []string{"cooling", "ready"})

	require.NoError(t, err)
	// The cooling credential is skipped, not removed.
	assert.Equal(t, []string{"ready"}, provider.calls)
}

func TestRotator_PrecheckFallsBackWhenAllCooling(t *testing.T) {
	provider := &scriptedProvider{
		generate: func(call int, credential string, in ports.PromptInput) (ports.Completion, error) {
			return textCompletion("ok"), nil
		},
	}
	cfg := DefaultRotatorConfig()
	cfg.PrecheckReadiness = true
	rotator, _ := newTestRotator(provider, cfg)
	ctx := context.Background()

	rotator.ledger.MarkFailed(ctx, "a", time.Minute)
	rotator.ledger.MarkFailed(ctx, "b", time.Minute)

	_, err := rotator.Invoke(ctx, "model-x", ports.PromptInput{}, []string{"a", "b"})

	require.NoError(t, err)
	// With no ready candidate the full ordered list is attempted anyway.
	assert.Equal(t, []string{"a"}, provider.calls)
}

func TestClassifyCapacityError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		capacity   bool
		overloaded bool
	}{
		{"structured 429", quotaError(), true, false},
		{"structured 503", overloadError(), true, true},
		{"structured auth", &ports.ProviderError{StatusCode: 401}, false, false},
		{"substring 429", errors.New("429 Resource exhausted"), true, false},
		{"substring quota", errors.New("Quota exceeded for project"), true, false},
		{"substring overloaded", errors.New("the model is overloaded"), true, true},
		{"substring 503", fmt.Errorf("wrapped: %w", errors.New("503 service unavailable")), true, true},
		{"network fault", errors.New("connection reset by peer"), false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			capacity, overloaded := classifyCapacityError(tc.err)
			assert.Equal(t, tc.capacity, capacity)
			assert.Equal(t, tc.overloaded, overloaded)
		})
	}
}
