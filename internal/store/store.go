// Package store persists users, diagrams, their members and diagram
// snapshots. Postgres backs production; Memory backs tests and local runs
// without a database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

type Diagram struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Member struct {
	DiagramID   string
	UserID      string
	Role        Role
	DisplayName string
	Email       string
}

// Snapshot is one saved version of a diagram's persisted form.
type Snapshot struct {
	ID        string
	DiagramID string
	Version   int32
	Data      json.RawMessage
	CreatedAt time.Time
}

type Users interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

type Diagrams interface {
	CreateDiagram(ctx context.Context, d Diagram) (Diagram, error)
	GetDiagram(ctx context.Context, id string) (Diagram, error)
	ListDiagramsForUser(ctx context.Context, userID string) ([]Diagram, error)
	DeleteDiagram(ctx context.Context, id string) error

	AddMember(ctx context.Context, diagramID, userID string, role Role) error
	GetMember(ctx context.Context, diagramID, userID string) (Member, error)
	ListMembers(ctx context.Context, diagramID string) ([]Member, error)
	RemoveMember(ctx context.Context, diagramID, userID string) error
}

type Snapshots interface {
	// CreateSnapshot stores data as the next version of the diagram and
	// returns the stored snapshot.
	CreateSnapshot(ctx context.Context, id, diagramID string, data json.RawMessage) (Snapshot, error)
	GetLatestSnapshot(ctx context.Context, diagramID string) (Snapshot, error)
}

// Store is everything the server persists.
type Store interface {
	Users
	Diagrams
	Snapshots
}
