package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Memory is a Store held in process memory.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]User
	diagrams  map[string]Diagram
	members   map[string]map[string]Role // diagramID -> userID -> role
	snapshots map[string][]Snapshot      // diagramID -> versions, oldest first
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]User),
		diagrams:  make(map[string]Diagram),
		members:   make(map[string]map[string]Role),
		snapshots: make(map[string][]Snapshot),
		now:       time.Now,
	}
}

func (m *Memory) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return User{}, fmt.Errorf("user %s: %w", u.ID, ErrDuplicate)
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, fmt.Errorf("email %s: %w", u.Email, ErrDuplicate)
		}
	}
	u.CreatedAt = m.now()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateDiagram(_ context.Context, d Diagram) (Diagram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.diagrams[d.ID]; ok {
		return Diagram{}, fmt.Errorf("diagram %s: %w", d.ID, ErrDuplicate)
	}
	d.CreatedAt = m.now()
	d.UpdatedAt = d.CreatedAt
	m.diagrams[d.ID] = d
	return d, nil
}

func (m *Memory) GetDiagram(_ context.Context, id string) (Diagram, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.diagrams[id]
	if !ok {
		return Diagram{}, ErrNotFound
	}
	return d, nil
}

// ListDiagramsForUser returns the diagrams userID is a member of, most
// recently updated first.
func (m *Memory) ListDiagramsForUser(_ context.Context, userID string) ([]Diagram, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Diagram
	for id, roles := range m.members {
		if _, ok := roles[userID]; ok {
			if d, ok := m.diagrams[id]; ok {
				out = append(out, d)
			}
		}
	}
	slices.SortFunc(out, func(a, b Diagram) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) DeleteDiagram(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.diagrams[id]; !ok {
		return ErrNotFound
	}
	delete(m.diagrams, id)
	delete(m.members, id)
	delete(m.snapshots, id)
	return nil
}

func (m *Memory) AddMember(_ context.Context, diagramID, userID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.diagrams[diagramID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[userID]; !ok {
		return ErrNotFound
	}
	roles, ok := m.members[diagramID]
	if !ok {
		roles = make(map[string]Role)
		m.members[diagramID] = roles
	}
	if _, ok := roles[userID]; ok {
		return fmt.Errorf("member %s: %w", userID, ErrDuplicate)
	}
	roles[userID] = role
	return nil
}

func (m *Memory) GetMember(_ context.Context, diagramID, userID string) (Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.members[diagramID][userID]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m.member(diagramID, userID, role), nil
}

func (m *Memory) ListMembers(_ context.Context, diagramID string) ([]Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Member, 0, len(m.members[diagramID]))
	for userID, role := range m.members[diagramID] {
		out = append(out, m.member(diagramID, userID, role))
	}
	slices.SortFunc(out, func(a, b Member) int { return cmp.Compare(a.Email, b.Email) })
	return out, nil
}

func (m *Memory) member(diagramID, userID string, role Role) Member {
	u := m.users[userID]
	return Member{DiagramID: diagramID, UserID: userID, Role: role, DisplayName: u.DisplayName, Email: u.Email}
}

func (m *Memory) RemoveMember(_ context.Context, diagramID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[diagramID][userID]; !ok {
		return ErrNotFound
	}
	delete(m.members[diagramID], userID)
	return nil
}

func (m *Memory) CreateSnapshot(_ context.Context, id, diagramID string, data json.RawMessage) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.diagrams[diagramID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	versions := m.snapshots[diagramID]
	snap := Snapshot{
		ID:        id,
		DiagramID: diagramID,
		Version:   int32(len(versions) + 1),
		Data:      slices.Clone(data),
		CreatedAt: m.now(),
	}
	m.snapshots[diagramID] = append(versions, snap)
	d.UpdatedAt = snap.CreatedAt
	m.diagrams[diagramID] = d
	return snap, nil
}

func (m *Memory) GetLatestSnapshot(_ context.Context, diagramID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.snapshots[diagramID]
	if len(versions) == 0 {
		return Snapshot{}, ErrNotFound
	}
	return versions[len(versions)-1], nil
}
