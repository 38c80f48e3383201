package engineports

import (
	"context"
	"time"
)

// Turn represents one conversational exchange, append-only per caller.
type Turn struct {
	Role      string    // "user" | "assistant"
	Content   string    // text
	CreatedAt time.Time // server-side timestamp
}

// CredentialRecord is a caller-owned provider credential loaded from storage.
type CredentialRecord struct {
	Identity    string // phone identity the credential belongs to
	AccessToken string // bearer secret
}

// ConversationStore persists chat state and credential records. The engine
// never caches any of this across requests.
type ConversationStore interface {
	Profile(ctx context.Context, callerID string) (map[string]any, error)
	SaveProfile(ctx context.Context, callerID string, profile map[string]any) error
	History(ctx context.Context, callerID string, limit int) ([]Turn, error) // oldest first
	SaveTurn(ctx context.Context, callerID string, turn Turn) error
	CredentialRecord(ctx context.Context, identity string) (*CredentialRecord, error) // nil, nil when absent
}
