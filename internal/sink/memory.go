package sink

import "sync"

// Memory keeps records in memory. FailWith, when set, makes every Append fail
// with an ErrWrite wrapping it.
type Memory struct {
	mu       sync.Mutex
	records  []Record
	FailWith error
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory { return &Memory{} }

// Append stores r.
func (m *Memory) Append(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return writeErr("append", "memory", m.FailWith)
	}
	m.records = append(m.records, r)
	return nil
}

// Records returns a copy of the stored records.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Rows reports the stored record count.
func (m *Memory) Rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Path is empty for in-memory sinks.
func (m *Memory) Path() string { return "" }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
