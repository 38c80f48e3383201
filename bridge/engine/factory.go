package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/konexhq/chatbridge/bridge/config"
	"github.com/konexhq/chatbridge/bridge/engine/adapters"
	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
	"github.com/konexhq/chatbridge/bridge/engine/tools"
)

// Factory creates and wires engine components from configuration.
type Factory struct {
	cfg    *config.Config
	db     *sql.DB
	logger zerolog.Logger

	// PaymentLink lets the integrator plug in the payment-gateway glue.
	// Nil leaves the tool declared but inert.
	PaymentLink tools.LinkGenerator
}

func NewFactory(cfg *config.Config, db *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, db: db, logger: logger}
}

// CreateEngine builds a fully wired Engine from config.
func (f *Factory) CreateEngine() (*Engine, error) {
	store := adapters.NewLibSQLStore(f.db)
	kv := adapters.NewTTLStore(f.cfg.Ledger.Capacity)
	ledger := NewCooldownLedger(kv, f.logger)

	provider := adapters.NewGeminiProvider(f.cfg.Provider.BaseURL, f.cfg.Provider.Timeout, f.logger)
	rotator := NewCredentialRotator(provider, ledger, RotatorConfig{
		QuotaCooldown:     time.Duration(f.cfg.Engine.CooldownSeconds) * time.Second,
		OverloadCooldown:  time.Duration(f.cfg.Engine.OverloadCooldownSeconds) * time.Second,
		PrecheckReadiness: f.cfg.Engine.PrecheckReadiness,
	}, f.logger)

	toolset := []ports.Tool{
		tools.NewUpdateProfileTool(store),
		tools.NewPaymentLinkTool(f.PaymentLink),
		tools.NewSystemStatusTool(store, kv),
	}

	return NewEngine(
		rotator,
		NewConversationAssembler(),
		store,
		toolset,
		f.createTracer(),
		f.logger,
		Options{
			Model:         f.cfg.Engine.Model,
			HistoryLimit:  f.cfg.Engine.HistoryLimit,
			MaxIterations: f.cfg.Engine.MaxIterations,
			ToolTimeout:   f.cfg.Engine.ToolTimeout,
			FallbackReply: f.cfg.Engine.FallbackReply,
			AdminPhones:   f.cfg.Credentials.AdminPhones,
			SystemKeys:    f.cfg.Credentials.SystemKeys,
		},
	), nil
}

func (f *Factory) createTracer() ports.Tracer {
	if !f.cfg.Engine.EnableTracing {
		return &noOpTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

// noOpTracer implements Tracer with no-op behavior for disabled tracing.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

var _ ports.Tracer = (*noOpTracer)(nil)
