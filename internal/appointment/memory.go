package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MemoryAuthority holds appointments in a map, keyed by room ID. It backs
// local development (seeded from a JSON file) and tests.
type MemoryAuthority struct {
	mu     sync.RWMutex
	byRoom map[string]*Appointment
}

// NewMemoryAuthority creates an empty in-memory authority.
func NewMemoryAuthority() *MemoryAuthority {
	return &MemoryAuthority{byRoom: make(map[string]*Appointment)}
}

// LoadMemoryAuthority reads a JSON array of appointments from path.
func LoadMemoryAuthority(path string) (*MemoryAuthority, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var appts []Appointment
	if err := json.Unmarshal(data, &appts); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	m := NewMemoryAuthority()
	for i := range appts {
		m.Put(&appts[i])
	}
	return m, nil
}

// Put registers or replaces an appointment.
func (m *MemoryAuthority) Put(a *Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byRoom[a.RoomID] = a
}

// Lookup implements Authority.
func (m *MemoryAuthority) Lookup(_ context.Context, roomID string) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byRoom[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}
