package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store backed by the schema in internal/db.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password, display_name, created_at`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName)
	out, err := scanUser(row)
	if err != nil {
		return User{}, mapError("create user", err)
	}
	return out, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, email, password, display_name, created_at
		FROM users WHERE lower(email) = lower($1)`, email)
	u, err := scanUser(row)
	if err != nil {
		return User{}, mapError("get user by email", err)
	}
	return u, nil
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (User, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, email, password, display_name, created_at
		FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return User{}, mapError("get user", err)
	}
	return u, nil
}

func (p *Postgres) CreateDiagram(ctx context.Context, d Diagram) (Diagram, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO diagrams (id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, owner_id, created_at, updated_at`,
		d.ID, d.Name, d.OwnerID)
	out, err := scanDiagram(row)
	if err != nil {
		return Diagram{}, mapError("create diagram", err)
	}
	return out, nil
}

func (p *Postgres) GetDiagram(ctx context.Context, id string) (Diagram, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM diagrams WHERE id = $1`, id)
	d, err := scanDiagram(row)
	if err != nil {
		return Diagram{}, mapError("get diagram", err)
	}
	return d, nil
}

func (p *Postgres) ListDiagramsForUser(ctx context.Context, userID string) ([]Diagram, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT d.id, d.name, d.owner_id, d.created_at, d.updated_at
		FROM diagrams d
		JOIN diagram_members m ON m.diagram_id = d.id
		WHERE m.user_id = $1
		ORDER BY d.updated_at DESC, d.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Diagram, error) {
		return scanDiagram(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	return out, nil
}

func (p *Postgres) DeleteDiagram(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM diagrams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete diagram: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AddMember(ctx context.Context, diagramID, userID string, role Role) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO diagram_members (diagram_id, user_id, role)
		VALUES ($1, $2, $3)`, diagramID, userID, string(role))
	if err != nil {
		return mapError("add member", err)
	}
	return nil
}

func (p *Postgres) GetMember(ctx context.Context, diagramID, userID string) (Member, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT m.diagram_id, m.user_id, m.role, u.display_name, u.email
		FROM diagram_members m JOIN users u ON u.id = m.user_id
		WHERE m.diagram_id = $1 AND m.user_id = $2`, diagramID, userID)
	m, err := scanMember(row)
	if err != nil {
		return Member{}, mapError("get member", err)
	}
	return m, nil
}

func (p *Postgres) ListMembers(ctx context.Context, diagramID string) ([]Member, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT m.diagram_id, m.user_id, m.role, u.display_name, u.email
		FROM diagram_members m JOIN users u ON u.id = m.user_id
		WHERE m.diagram_id = $1
		ORDER BY u.email`, diagramID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Member, error) {
		return scanMember(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return out, nil
}

func (p *Postgres) RemoveMember(ctx context.Context, diagramID, userID string) error {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM diagram_members WHERE diagram_id = $1 AND user_id = $2`, diagramID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSnapshot numbers the snapshot after the diagram's latest one and
// bumps the diagram's updated_at in the same transaction.
func (p *Postgres) CreateSnapshot(ctx context.Context, id, diagramID string, data json.RawMessage) (Snapshot, error) {
	var snap Snapshot
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO snapshots (id, diagram_id, version, data)
			SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3
			FROM snapshots WHERE diagram_id = $2
			RETURNING id, diagram_id, version, data, created_at`,
			id, diagramID, []byte(data))
		var err error
		if snap, err = scanSnapshot(row); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE diagrams SET updated_at = $2 WHERE id = $1`, diagramID, snap.CreatedAt)
		return err
	})
	if err != nil {
		return Snapshot{}, mapError("create snapshot", err)
	}
	return snap, nil
}

func (p *Postgres) GetLatestSnapshot(ctx context.Context, diagramID string) (Snapshot, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, diagram_id, version, data, created_at
		FROM snapshots WHERE diagram_id = $1
		ORDER BY version DESC LIMIT 1`, diagramID)
	snap, err := scanSnapshot(row)
	if err != nil {
		return Snapshot{}, mapError("get snapshot", err)
	}
	return snap, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	return u, err
}

func scanDiagram(row pgx.Row) (Diagram, error) {
	var d Diagram
	err := row.Scan(&d.ID, &d.Name, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	var role string
	err := row.Scan(&m.DiagramID, &m.UserID, &role, &m.DisplayName, &m.Email)
	m.Role = Role(role)
	return m, err
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var s Snapshot
	var data []byte
	err := row.Scan(&s.ID, &s.DiagramID, &s.Version, &data, &s.CreatedAt)
	s.Data = data
	return s, err
}

// mapError turns driver errors into the package's sentinels.
func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
