package engine

import (
	"strings"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// CandidateCredentials builds the ordered rotation list: the caller's own
// credential first, then the configured system credentials. Entries are
// trimmed and de-duplicated preserving first occurrence.
func CandidateCredentials(record *ports.CredentialRecord, systemKeys []string) []string {
	raw := make([]string, 0, len(systemKeys)+1)
	if record != nil {
		raw = append(raw, record.AccessToken)
	}
	raw = append(raw, systemKeys...)

	candidates := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, key := range raw {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		candidates = append(candidates, trimmed)
	}
	return candidates
}
