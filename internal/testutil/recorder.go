package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/bioflow/internal/registry"
)

// CallRecord is when one recorded call started and returned.
type CallRecord struct {
	Start, End time.Time
}

// RecorderModule registers "record.call", which records when each call ran.
// The first argument names the call.
type RecorderModule struct {
	// Sleep is how long each call takes.
	Sleep time.Duration

	mu      sync.Mutex
	order   []string
	records map[string]*CallRecord
}

// Register implements registry.Module.
func (m *RecorderModule) Register(r *registry.Registry) {
	r.RegisterFunction("record", "call", func(ctx context.Context, args []any) (any, error) {
		id, err := registry.String(args, 0)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		select {
		case <-time.After(m.Sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.records == nil {
			m.records = make(map[string]*CallRecord)
		}
		m.order = append(m.order, id)
		m.records[id] = &CallRecord{Start: start, End: time.Now()}
		return id, nil
	})
}

// Order returns the names of completed calls in completion order.
func (m *RecorderModule) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Record returns the timing of the call named id.
func (m *RecorderModule) Record(id string) (*CallRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

// FuncModule registers a single function.
type FuncModule struct {
	Module   string
	Function string
	Fn       registry.Func
}

// Register implements registry.Module.
func (m *FuncModule) Register(r *registry.Registry) {
	r.RegisterFunction(m.Module, m.Function, m.Fn)
}
