// Package workspace is the HTTP surface for listing, creating and sharing
// diagrams.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inamate/diagram/internal/document"
	"github.com/inamate/diagram/internal/store"
	"github.com/inamate/diagram/internal/typeid"
)

var (
	ErrNotFound     = errors.New("diagram not found")
	ErrForbidden    = errors.New("forbidden")
	ErrNotMember    = errors.New("not a diagram member")
	ErrUserNotFound = errors.New("user not found")
	ErrOwnerRemoval = errors.New("cannot remove diagram owner")
)

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

type Diagram struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type Member struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Create stores a new diagram owned by ownerID and seeds its first
// snapshot, either empty or with the sample content.
func (s *Service) Create(ctx context.Context, name, ownerID string, sample bool) (*Diagram, error) {
	diagramID := typeid.NewDiagramID()

	d, err := s.store.CreateDiagram(ctx, store.Diagram{
		ID:      diagramID,
		Name:    name,
		OwnerID: ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("create diagram: %w", err)
	}

	if err := s.store.AddMember(ctx, diagramID, ownerID, store.RoleOwner); err != nil {
		return nil, fmt.Errorf("add owner as member: %w", err)
	}

	scene := document.NewScene(diagramID)
	if sample {
		scene = document.NewSampleScene(diagramID)
	}
	data, err := document.Serialize(scene)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.CreateSnapshot(ctx, typeid.NewSnapshotID(), diagramID, data); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	return toDiagram(d), nil
}

func (s *Service) Get(ctx context.Context, diagramID, userID string) (*Diagram, error) {
	if err := s.CheckMembership(ctx, diagramID, userID); err != nil {
		return nil, err
	}

	d, err := s.store.GetDiagram(ctx, diagramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get diagram: %w", err)
	}

	return toDiagram(d), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Diagram, error) {
	stored, err := s.store.ListDiagramsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}

	diagrams := make([]Diagram, len(stored))
	for i, d := range stored {
		diagrams[i] = *toDiagram(d)
	}

	return diagrams, nil
}

func (s *Service) Delete(ctx context.Context, diagramID, userID string) error {
	if _, err := s.owned(ctx, diagramID, userID); err != nil {
		return err
	}
	return s.store.DeleteDiagram(ctx, diagramID)
}

func (s *Service) InviteByEmail(ctx context.Context, diagramID, ownerID, inviteeEmail string) error {
	if _, err := s.owned(ctx, diagramID, ownerID); err != nil {
		return err
	}

	invitee, err := s.store.GetUserByEmail(ctx, inviteeEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	err = s.store.AddMember(ctx, diagramID, invitee.ID, store.RoleEditor)
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Service) ListMembers(ctx context.Context, diagramID, userID string) ([]Member, error) {
	if err := s.CheckMembership(ctx, diagramID, userID); err != nil {
		return nil, err
	}

	stored, err := s.store.ListMembers(ctx, diagramID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	members := make([]Member, len(stored))
	for i, m := range stored {
		members[i] = Member{
			UserID:      m.UserID,
			Role:        string(m.Role),
			DisplayName: m.DisplayName,
			Email:       m.Email,
		}
	}

	return members, nil
}

func (s *Service) RemoveMember(ctx context.Context, diagramID, ownerID, targetUserID string) error {
	if _, err := s.owned(ctx, diagramID, ownerID); err != nil {
		return err
	}
	if targetUserID == ownerID {
		return ErrOwnerRemoval
	}

	err := s.store.RemoveMember(ctx, diagramID, targetUserID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotMember
	}
	return err
}

// LatestSnapshot returns the most recently saved persisted form.
func (s *Service) LatestSnapshot(ctx context.Context, diagramID, userID string) (json.RawMessage, error) {
	if err := s.CheckMembership(ctx, diagramID, userID); err != nil {
		return nil, err
	}

	snap, err := s.store.GetLatestSnapshot(ctx, diagramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	return snap.Data, nil
}

// CheckMembership returns ErrNotMember unless userID may open diagramID.
func (s *Service) CheckMembership(ctx context.Context, diagramID, userID string) error {
	_, err := s.store.GetMember(ctx, diagramID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("check membership: %w", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, diagramID, userID string) (store.Diagram, error) {
	d, err := s.store.GetDiagram(ctx, diagramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Diagram{}, ErrNotFound
		}
		return store.Diagram{}, fmt.Errorf("get diagram: %w", err)
	}
	if d.OwnerID != userID {
		return store.Diagram{}, ErrForbidden
	}
	return d, nil
}

func toDiagram(d store.Diagram) *Diagram {
	return &Diagram{
		ID:        d.ID,
		Name:      d.Name,
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
