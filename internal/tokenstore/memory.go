package tokenstore

import "sync"

// OpKind identifies a store operation in a MemoryStore history.
type OpKind string

const (
	OpSave  OpKind = "save"
	OpRead  OpKind = "read"
	OpClear OpKind = "clear"
)

// Op is one recorded store operation. Token is the value saved or the value
// returned by a read.
type Op struct {
	Kind  OpKind
	Token string
}

// MemoryStore keeps the token in process memory and records every operation.
// It is not durable; use it for tests and for the "memory" backend.
type MemoryStore struct {
	mu      sync.Mutex
	token   string
	present bool
	history []Op
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith creates an in-memory store already holding token.
// The seed is not recorded in the history.
func NewMemoryStoreWith(token string) *MemoryStore {
	return &MemoryStore{token: token, present: token != ""}
}

// Save implements Store.
func (m *MemoryStore) Save(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	m.present = token != ""
	m.history = append(m.history, Op{Kind: OpSave, Token: token})
}

// Read implements Store.
func (m *MemoryStore) Read() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, Op{Kind: OpRead, Token: m.token})
	return m.token, m.present
}

// Clear implements Store.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	m.present = false
	m.history = append(m.history, Op{Kind: OpClear})
}

// History returns a copy of the recorded operations in order.
func (m *MemoryStore) History() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Op, len(m.history))
	copy(out, m.history)
	return out
}

// Writes returns only the save and clear operations, which is what most
// assertions care about.
func (m *MemoryStore) Writes() []Op {
	var out []Op
	for _, op := range m.History() {
		if op.Kind != OpRead {
			out = append(out, op)
		}
	}
	return out
}

// Peek returns the current token without recording a read.
func (m *MemoryStore) Peek() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.present
}
