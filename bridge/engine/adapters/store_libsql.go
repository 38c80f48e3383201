package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// LibSQLStore implements ConversationStore over an embedded libsql database.
type LibSQLStore struct {
	db *sql.DB
}

func NewLibSQLStore(db *sql.DB) *LibSQLStore {
	return &LibSQLStore{db: db}
}

// Profile loads the caller's stored facts. A missing row is an empty
// profile, not an error.
func (s *LibSQLStore) Profile(ctx context.Context, callerID string) (map[string]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_data FROM user_profiles WHERE user_id = ?`, callerID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	profile := map[string]any{}
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return profile, nil
}

func (s *LibSQLStore) SaveProfile(ctx context.Context, callerID string, profile map[string]any) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO user_profiles (user_id, profile_data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			profile_data = excluded.profile_data,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, callerID, string(data)); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// History loads the last-k turns in chronological order (oldest first).
func (s *LibSQLStore) History(ctx context.Context, callerID string, limit int) ([]ports.Turn, error) {
	query := `
		SELECT role, content, created_at FROM chat_turns
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []ports.Turn
	for rows.Next() {
		var turn ports.Turn
		if err := rows.Scan(&turn.Role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	// Reverse to get chronological order (oldest first)
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *LibSQLStore) SaveTurn(ctx context.Context, callerID string, turn ports.Turn) error {
	query := `
		INSERT INTO chat_turns (user_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, callerID, turn.Role, turn.Content, turn.CreatedAt); err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// CredentialRecord returns the caller-owned provider credential, or nil when
// the caller has none.
func (s *LibSQLStore) CredentialRecord(ctx context.Context, identity string) (*ports.CredentialRecord, error) {
	var record ports.CredentialRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT phone_number, access_token FROM credential_records WHERE phone_number = ?`, identity).
		Scan(&record.Identity, &record.AccessToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential record: %w", err)
	}
	return &record, nil
}

// CheckHealth runs a trivial query against the database.
func (s *LibSQLStore) CheckHealth(ctx context.Context) bool {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return false
	}
	return one == 1
}

var (
	_ ports.ConversationStore = (*LibSQLStore)(nil)
	_ ports.HealthChecker     = (*LibSQLStore)(nil)
)
