package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/conc"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// SystemStatusSchema defines the JSON schema for the status tool; it takes
// no parameters.
const SystemStatusSchema = `{
  "type": "object",
  "properties": {},
  "required": []
}`

// SystemStatusTool reports the health of the persistence and cooldown-store
// dependencies. The result is injected directly into the reply rather than
// round-tripped through the model.
type SystemStatusTool struct {
	db    ports.HealthChecker
	cache ports.HealthChecker
}

func NewSystemStatusTool(db, cache ports.HealthChecker) *SystemStatusTool {
	return &SystemStatusTool{db: db, cache: cache}
}

func (t *SystemStatusTool) Name() string        { return "get_system_status" }
func (t *SystemStatusTool) Description() string { return "Check database and cache health." }
func (t *SystemStatusTool) Schema() []byte      { return []byte(SystemStatusSchema) }

func (t *SystemStatusTool) Invoke(ctx context.Context, _ json.RawMessage) (ports.ToolResult, error) {
	var dbOK, cacheOK bool

	var wg conc.WaitGroup
	wg.Go(func() { dbOK = t.db.CheckHealth(ctx) })
	wg.Go(func() { cacheOK = t.cache.CheckHealth(ctx) })
	wg.Wait()

	reply := fmt.Sprintf("DB Status: %s\nCache Status: %s", statusWord(dbOK), statusWord(cacheOK))
	return ports.ToolResult{Reply: reply}, nil
}

func statusWord(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}

var _ ports.Tool = (*SystemStatusTool)(nil)
