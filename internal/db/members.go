package db

import (
	"context"
	"database/sql"
	"fmt"
)

const memberColumns = `id, name, pin_hash, color, is_leader, created_at`

func scanMember(row interface{ Scan(...any) error }) (*Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.Name, &m.PINHash, &m.Color, &m.IsLeader, scanTime(&m.CreatedAt)); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// CreateMember inserts a member. The first member ever created is the leader.
func (d *DB) CreateMember(ctx context.Context, name, pinHash, color string) (*Member, error) {
	m := &Member{
		ID:        NewID(),
		Name:      name,
		PINHash:   pinHash,
		Color:     color,
		CreatedAt: d.clock.Now(),
	}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if d.driver == DriverPostgres {
			// Concurrent first signups must not both see an empty table.
			// Sqlite already serializes writers on its single connection.
			if _, err := tx.ExecContext(ctx, `LOCK TABLE members IN SHARE ROW EXCLUSIVE MODE`); err != nil {
				return fmt.Errorf("lock members: %w", err)
			}
		}
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&count); err != nil {
			return fmt.Errorf("count members: %w", err)
		}
		m.IsLeader = count == 0
		_, err := tx.ExecContext(ctx, d.rebind(`
			INSERT INTO members (id, name, pin_hash, color, is_leader, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			m.ID, m.Name, m.PINHash, m.Color, m.IsLeader, d.ts(m.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert member: %w", translate(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (d *DB) GetMemberByID(ctx context.Context, id string) (*Member, error) {
	row := d.QueryRowContext(ctx, d.rebind(`SELECT `+memberColumns+` FROM members WHERE id = ?`), id)
	m, err := scanMember(row)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (d *DB) GetMemberByName(ctx context.Context, name string) (*Member, error) {
	row := d.QueryRowContext(ctx, d.rebind(`SELECT `+memberColumns+` FROM members WHERE name = ?`), name)
	m, err := scanMember(row)
	if err != nil {
		return nil, fmt.Errorf("get member by name: %w", err)
	}
	return m, nil
}

func (d *DB) MemberNameExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := d.QueryRowContext(ctx, d.rebind(`SELECT COUNT(*) FROM members WHERE name = ?`), name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check member name: %w", err)
	}
	return n > 0, nil
}

func (d *DB) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := d.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// DeleteMember removes a member and everything they own in one transaction.
// Topics they created survive with created_by cleared.
func (d *DB) DeleteMember(ctx context.Context, id string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			name  string
			query string
		}{
			{"delete reactions", `DELETE FROM reactions WHERE member_id = ?`},
			{"delete read status", `DELETE FROM read_status WHERE member_id = ?`},
			{"delete messages", `DELETE FROM messages WHERE member_id = ?`},
			{"release topics", `UPDATE topics SET created_by = NULL WHERE created_by = ?`},
		}
		for _, s := range steps {
			if _, err := tx.ExecContext(ctx, d.rebind(s.query), id); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
		}
		res, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM members WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete member: %w", ErrNotFound)
		}
		return nil
	})
}
