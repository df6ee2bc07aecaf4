package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists address books in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wires a Postgres-backed address store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

const addressColumns = `id, customer_id, label, recipient, phone, line1, line2, city, province, postal_code, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.CustomerID, &a.Label, &a.Recipient, &a.Phone,
		&a.Line1, &a.Line2, &a.City, &a.Province, &a.PostalCode,
		&a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	if err != nil {
		return Address{}, fmt.Errorf("scan address: %w", err)
	}
	return a, nil
}

// Insert stores a new address, demoting existing defaults in the same
// transaction when the new address is the default.
func (s *PGStore) Insert(ctx context.Context, addr Address, demoteOthers bool) (Address, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Address{}, fmt.Errorf("begin insert address: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if demoteOthers {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = FALSE, updated_at = now() WHERE customer_id = $1 AND is_default`,
			addr.CustomerID); err != nil {
			return Address{}, fmt.Errorf("demote defaults: %w", err)
		}
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO addresses (id, customer_id, label, recipient, phone, line1, line2, city, province, postal_code, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+addressColumns,
		addr.ID, addr.CustomerID, addr.Label, addr.Recipient, addr.Phone,
		addr.Line1, addr.Line2, addr.City, addr.Province, addr.PostalCode, addr.IsDefault)
	created, err := scanAddress(row)
	if err != nil {
		return Address{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Address{}, fmt.Errorf("commit insert address: %w", err)
	}
	return created, nil
}

// Update rewrites an address, demoting other defaults first when the update
// promotes it.
func (s *PGStore) Update(ctx context.Context, addr Address, demoteOthers bool) (Address, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Address{}, fmt.Errorf("begin update address: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if demoteOthers {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = FALSE, updated_at = now() WHERE customer_id = $1 AND is_default AND id <> $2`,
			addr.CustomerID, addr.ID); err != nil {
			return Address{}, fmt.Errorf("demote defaults: %w", err)
		}
	}
	row := tx.QueryRow(ctx, `
		UPDATE addresses
		SET label = $3, recipient = $4, phone = $5, line1 = $6, line2 = $7,
		    city = $8, province = $9, postal_code = $10, is_default = $11, updated_at = now()
		WHERE customer_id = $1 AND id = $2
		RETURNING `+addressColumns,
		addr.CustomerID, addr.ID, addr.Label, addr.Recipient, addr.Phone,
		addr.Line1, addr.Line2, addr.City, addr.Province, addr.PostalCode, addr.IsDefault)
	updated, err := scanAddress(row)
	if err != nil {
		return Address{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Address{}, fmt.Errorf("commit update address: %w", err)
	}
	return updated, nil
}

// Delete removes the address and promotes the most recently updated survivor
// when the removed address was the default.
func (s *PGStore) Delete(ctx context.Context, customerID string, id uuid.UUID) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin delete address: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var wasDefault bool
	err = tx.QueryRow(ctx,
		`DELETE FROM addresses WHERE customer_id = $1 AND id = $2 RETURNING is_default`,
		customerID, id).Scan(&wasDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("delete address: %w", err)
	}

	if wasDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE addresses SET is_default = TRUE, updated_at = now()
			WHERE id = (
				SELECT id FROM addresses WHERE customer_id = $1
				ORDER BY updated_at DESC, created_at DESC LIMIT 1
			)`, customerID); err != nil {
			return false, fmt.Errorf("promote successor: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit delete address: %w", err)
	}
	return wasDefault, nil
}

// Get fetches one address scoped to the customer.
func (s *PGStore) Get(ctx context.Context, customerID string, id uuid.UUID) (Address, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE customer_id = $1 AND id = $2`,
		customerID, id)
	return scanAddress(row)
}

// List returns the customer's addresses, default first, newest next.
func (s *PGStore) List(ctx context.Context, customerID string) ([]Address, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE customer_id = $1
		 ORDER BY is_default DESC, updated_at DESC`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return out, nil
}

// Count returns the size of the customer's address book.
func (s *PGStore) Count(ctx context.Context, customerID string) (int64, error) {
	var n int64
	err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM addresses WHERE customer_id = $1`, customerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count addresses: %w", err)
	}
	return n, nil
}

// RepairDefaults restores the single-default invariant inside one transaction.
func (s *PGStore) RepairDefaults(ctx context.Context, customerID string) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin repair: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Demote every default except the most recently updated one.
	demoted, err := tx.Exec(ctx, `
		UPDATE addresses SET is_default = FALSE, updated_at = now()
		WHERE customer_id = $1 AND is_default AND id <> (
			SELECT id FROM addresses WHERE customer_id = $1 AND is_default
			ORDER BY updated_at DESC, created_at DESC LIMIT 1
		)`, customerID)
	if err != nil {
		return false, fmt.Errorf("demote extra defaults: %w", err)
	}

	// Promote the most recent entry when the book has no default at all.
	promoted, err := tx.Exec(ctx, `
		UPDATE addresses SET is_default = TRUE, updated_at = now()
		WHERE customer_id = $1
		  AND NOT EXISTS (SELECT 1 FROM addresses WHERE customer_id = $1 AND is_default)
		  AND id = (
			SELECT id FROM addresses WHERE customer_id = $1
			ORDER BY updated_at DESC, created_at DESC LIMIT 1
		)`, customerID)
	if err != nil {
		return false, fmt.Errorf("promote default: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit repair: %w", err)
	}
	return demoted.RowsAffected() > 0 || promoted.RowsAffected() > 0, nil
}

// CustomersNeedingRepair returns customers whose book has zero or multiple
// defaults.
func (s *PGStore) CustomersNeedingRepair(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT customer_id FROM addresses
		GROUP BY customer_id
		HAVING count(*) FILTER (WHERE is_default) <> 1
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("customers needing repair: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan customer id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("customers needing repair: %w", err)
	}
	return out, nil
}
