package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// RotatorConfig controls failover behavior.
type RotatorConfig struct {
	// QuotaCooldown applies when a credential fails on quota exhaustion.
	QuotaCooldown time.Duration
	// OverloadCooldown applies when the provider reports transient overload;
	// kept short because the condition usually clears within seconds.
	OverloadCooldown time.Duration
	// PrecheckReadiness consults the ledger before each attempt and skips
	// candidates still cooling down. When every candidate is cooling the
	// full ordered list is attempted anyway.
	PrecheckReadiness bool
}

func DefaultRotatorConfig() RotatorConfig {
	return RotatorConfig{
		QuotaCooldown:    60 * time.Second,
		OverloadCooldown: 2 * time.Second,
	}
}

// CredentialRotator attempts a provider call with each candidate credential
// in order, first success wins. Ordering is significant: caller-owned
// credentials come before shared system ones.
type CredentialRotator struct {
	provider ports.Provider
	ledger   *CooldownLedger
	cfg      RotatorConfig
	logger   zerolog.Logger
}

func NewCredentialRotator(provider ports.Provider, ledger *CooldownLedger, cfg RotatorConfig, logger zerolog.Logger) *CredentialRotator {
	if cfg.QuotaCooldown <= 0 {
		cfg.QuotaCooldown = 60 * time.Second
	}
	if cfg.OverloadCooldown <= 0 {
		cfg.OverloadCooldown = 2 * time.Second
	}
	return &CredentialRotator{
		provider: provider,
		ledger:   ledger,
		cfg:      cfg,
		logger:   logger,
	}
}

// Invoke runs the provider call with sequential failover. Capacity failures
// mark the credential in the cooldown ledger and move on; any other failure
// propagates immediately since rotation cannot fix it.
func (r *CredentialRotator) Invoke(ctx context.Context, model string, in ports.PromptInput, candidates []string) (ports.Completion, error) {
	if len(candidates) == 0 {
		return ports.Completion{}, ErrNoCandidates
	}

	order := candidates
	if r.cfg.PrecheckReadiness {
		if ready := r.filterReady(ctx, candidates); len(ready) > 0 {
			order = ready
		}
	}

	for i, credential := range order {
		completion, err := r.provider.Generate(ctx, credential, model, in)
		if err == nil {
			return completion, nil
		}

		capacity, overloaded := classifyCapacityError(err)
		if !capacity {
			return ports.Completion{}, fmt.Errorf("provider call failed: %w", err)
		}

		cooldown := r.cfg.QuotaCooldown
		if overloaded {
			cooldown = r.cfg.OverloadCooldown
		}
		r.logger.Warn().
			Int("candidate", i+1).
			Int("pool_size", len(order)).
			Dur("cooldown", cooldown).
			Msg("credential hit capacity limit, rotating")
		r.ledger.MarkFailed(ctx, credential, cooldown)
	}

	return ports.Completion{}, ErrAllCredentialsExhausted
}

// filterReady drops candidates with an active cooldown, preserving order.
func (r *CredentialRotator) filterReady(ctx context.Context, candidates []string) []string {
	ready := make([]string, 0, len(candidates))
	for _, credential := range candidates {
		if r.ledger.Readiness(ctx, credential) == 0 {
			ready = append(ready, credential)
		}
	}
	return ready
}

// classifyCapacityError decides whether a provider failure is recoverable by
// rotation. Structured signals are checked first; the substring heuristic is
// a fallback for providers that only surface flat error strings.
func classifyCapacityError(err error) (capacity, overloaded bool) {
	var pe *ports.ProviderError
	if errors.As(err, &pe) {
		switch pe.StatusCode {
		case 429:
			return true, false
		case 503:
			return true, true
		}
		switch pe.Code {
		case "RESOURCE_EXHAUSTED":
			return true, false
		case "UNAVAILABLE":
			return true, true
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "503"), strings.Contains(msg, "overloaded"), strings.Contains(msg, "unavailable"):
		return true, true
	case strings.Contains(msg, "429"), strings.Contains(msg, "quota"),
		strings.Contains(msg, "too many requests"), strings.Contains(msg, "resource exhausted"):
		return true, false
	}
	return false, false
}
