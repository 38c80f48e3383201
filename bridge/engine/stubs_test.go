package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// memKV implements KVStore for testing, recording traffic so tests can
// assert the ledger was (or was not) touched.
type memKV struct {
	mu       sync.Mutex
	items    map[string]memKVEntry
	setCalls int
	getCalls int
	setErr   error
	getErr   error
}

type memKVEntry struct {
	value string
	ttl   time.Duration
}

func newMemKV() *memKV {
	return &memKV{items: make(map[string]memKVEntry)}
}

func (s *memKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	s.items[key] = memKVEntry{value: value, ttl: ttl}
	return nil
}

func (s *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return "", false, s.getErr
	}
	entry, ok := s.items[key]
	return entry.value, ok, nil
}

var _ ports.KVStore = (*memKV)(nil)

// scriptedProvider implements Provider for testing, dispatching on the
// credential it was handed.
type scriptedProvider struct {
	mu       sync.Mutex
	calls    []string // credentials in attempt order
	inputs   []ports.PromptInput
	generate func(call int, credential string, in ports.PromptInput) (ports.Completion, error)
}

func (p *scriptedProvider) Generate(ctx context.Context, credential, model string, in ports.PromptInput) (ports.Completion, error) {
	p.mu.Lock()
	call := len(p.calls)
	p.calls = append(p.calls, credential)
	p.inputs = append(p.inputs, in)
	p.mu.Unlock()
	return p.generate(call, credential, in)
}

var _ ports.Provider = (*scriptedProvider)(nil)

// memStore implements ConversationStore for testing.
type memStore struct {
	mu          sync.Mutex
	profiles    map[string]map[string]any
	turns       map[string][]ports.Turn
	creds       map[string]*ports.CredentialRecord
	history     []ports.Turn
	profileErr  error
	historyErr  error
	credErr     error
	saveErr     error
	saveProfErr error
	healthy     bool
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]map[string]any),
		turns:    make(map[string][]ports.Turn),
		creds:    make(map[string]*ports.CredentialRecord),
		healthy:  true,
	}
}

func (s *memStore) Profile(ctx context.Context, callerID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	copied := map[string]any{}
	for k, v := range s.profiles[callerID] {
		copied[k] = v
	}
	return copied, nil
}

func (s *memStore) SaveProfile(ctx context.Context, callerID string, profile map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveProfErr != nil {
		return s.saveProfErr
	}
	s.profiles[callerID] = profile
	return nil
}

func (s *memStore) History(ctx context.Context, callerID string, limit int) ([]ports.Turn, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.history, nil
}

func (s *memStore) SaveTurn(ctx context.Context, callerID string, turn ports.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.turns[callerID] = append(s.turns[callerID], turn)
	return nil
}

func (s *memStore) CredentialRecord(ctx context.Context, identity string) (*ports.CredentialRecord, error) {
	if s.credErr != nil {
		return nil, s.credErr
	}
	return s.creds[identity], nil
}

func (s *memStore) CheckHealth(ctx context.Context) bool { return s.healthy }

var _ ports.ConversationStore = (*memStore)(nil)
var _ ports.HealthChecker = (*memStore)(nil)

// healthStub implements HealthChecker with a fixed answer.
type healthStub struct{ ok bool }

func (h healthStub) CheckHealth(ctx context.Context) bool { return h.ok }

// echoTool implements Tool for feedback-loop tests.
type echoTool struct {
	name     string
	result   ports.ToolResult
	err      error
	invoked  int
	lastArgs json.RawMessage
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "test tool" }
func (t *echoTool) Schema() []byte      { return nil }
func (t *echoTool) Invoke(ctx context.Context, args json.RawMessage) (ports.ToolResult, error) {
	t.invoked++
	t.lastArgs = args
	return t.result, t.err
}

var _ ports.Tool = (*echoTool)(nil)

func textCompletion(texts ...string) ports.Completion {
	var c ports.Completion
	for _, text := range texts {
		c.Parts = append(c.Parts, ports.Part{Text: text})
	}
	return c
}

func toolCallPart(name, args string) ports.Part {
	return ports.Part{ToolCall: &ports.ToolCall{Name: name, Args: json.RawMessage(args)}}
}
