package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

const cooldownKeyPrefix = "credfail:"

// CooldownLedger is the shared TTL store recording which credentials are
// temporarily unusable. Entries are keyed by a one-way hash of the secret so
// the raw credential never reaches shared storage, and expire on their own
// once the cooldown elapses.
//
// The ledger is failure-open: if the backing store is unreachable, every
// credential looks ready rather than blocking requests.
type CooldownLedger struct {
	store  ports.KVStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewCooldownLedger(store ports.KVStore, logger zerolog.Logger) *CooldownLedger {
	return &CooldownLedger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// MarkFailed records that the credential must not be tried again until
// now + cooldown. Store errors are logged and swallowed.
func (l *CooldownLedger) MarkFailed(ctx context.Context, credential string, cooldown time.Duration) {
	readyAt := l.now().Add(cooldown).Unix()
	key := cooldownKeyPrefix + hashCredential(credential)

	if err := l.store.Set(ctx, key, strconv.FormatInt(readyAt, 10), cooldown); err != nil {
		l.logger.Warn().Err(err).Msg("cooldown ledger write failed, continuing without cooldown")
	}
}

// Readiness returns the epoch second the credential clears its cooldown, or
// 0 if it is ready now. Absent entries, unparsable values, and store errors
// all read as ready.
func (l *CooldownLedger) Readiness(ctx context.Context, credential string) int64 {
	key := cooldownKeyPrefix + hashCredential(credential)

	val, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn().Err(err).Msg("cooldown ledger read failed, treating credential as ready")
		return 0
	}
	if !ok {
		return 0
	}

	readyAt, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return readyAt
}

func hashCredential(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
