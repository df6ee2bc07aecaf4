package address

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

// ErrNotFound is returned when an address does not exist for the customer.
var ErrNotFound = errors.New("address: not found")

// Address is one entry in a customer's address book. At most one entry per
// customer carries IsDefault.
type Address struct {
	ID         uuid.UUID `json:"id"`
	CustomerID string    `json:"customerId"`
	Label      string    `json:"label"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode string    `json:"postalCode"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Input carries the writable fields of an address.
type Input struct {
	Label      string `json:"label" validate:"required,max=64"`
	Recipient  string `json:"recipient" validate:"required,max=128"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2" validate:"max=255"`
	City       string `json:"city" validate:"required,max=128"`
	Province   string `json:"province" validate:"required,max=128"`
	PostalCode string `json:"postalCode" validate:"required,max=16"`
	IsDefault  bool   `json:"isDefault"`
}

// Store persists address books. Mutations that touch the default flag run in
// a single transaction so the at-most-one-default invariant holds even if the
// process dies mid-write.
type Store interface {
	Insert(ctx context.Context, addr Address, demoteOthers bool) (Address, error)
	Update(ctx context.Context, addr Address, demoteOthers bool) (Address, error)
	// Delete removes the address and, when it was the default, promotes the
	// most recently updated remaining address within the same transaction.
	Delete(ctx context.Context, customerID string, id uuid.UUID) (wasDefault bool, err error)
	Get(ctx context.Context, customerID string, id uuid.UUID) (Address, error)
	List(ctx context.Context, customerID string) ([]Address, error)
	Count(ctx context.Context, customerID string) (int64, error)
	// RepairDefaults restores the invariant for one customer: extra
	// defaults are demoted keeping the most recently updated one, and a
	// non-empty book with no default promotes the most recent entry.
	RepairDefaults(ctx context.Context, customerID string) (changed bool, err error)
	// CustomersNeedingRepair lists customers whose books violate the
	// invariant, up to limit.
	CustomersNeedingRepair(ctx context.Context, limit int) ([]string, error)
}

// Service coordinates address book mutations behind a per-customer lock.
type Service struct {
	Store   Store
	Locks   lock.Locker
	Log     zerolog.Logger
	Metrics *obs.DomainMetrics
}

// Create adds an address. The first address of a customer always becomes the
// default regardless of the request.
func (s *Service) Create(ctx context.Context, customerID string, in Input) (Address, error) {
	if s == nil || s.Store == nil {
		return Address{}, errors.New("address: service not configured")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Address{}, errors.New("address: empty customer id")
	}

	lease, err := s.Locks.Acquire(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return Address{}, fmt.Errorf("create address: %w", err)
	}
	defer func() { _ = lease.Release(ctx) }()

	count, err := s.Store.Count(ctx, customerID)
	if err != nil {
		return Address{}, err
	}
	addr := fromInput(customerID, in)
	addr.ID = uuid.New()
	if count == 0 {
		addr.IsDefault = true
	}
	return s.Store.Insert(ctx, addr, addr.IsDefault)
}

// Update replaces the writable fields of an address. Promoting an address to
// default demotes the previous default in the same transaction.
func (s *Service) Update(ctx context.Context, customerID string, id uuid.UUID, in Input) (Address, error) {
	lease, err := s.Locks.Acquire(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return Address{}, fmt.Errorf("update address: %w", err)
	}
	defer func() { _ = lease.Release(ctx) }()

	current, err := s.Store.Get(ctx, customerID, id)
	if err != nil {
		return Address{}, err
	}
	addr := fromInput(customerID, in)
	addr.ID = current.ID
	addr.CreatedAt = current.CreatedAt
	// Dropping the default flag leaves the book with no default; the next
	// read repairs it.
	return s.Store.Update(ctx, addr, addr.IsDefault && !current.IsDefault)
}

// Delete removes an address. When the default is deleted the most recently
// updated remaining address is promoted.
func (s *Service) Delete(ctx context.Context, customerID string, id uuid.UUID) error {
	lease, err := s.Locks.Acquire(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	defer func() { _ = lease.Release(ctx) }()

	wasDefault, err := s.Store.Delete(ctx, customerID, id)
	if err != nil {
		return err
	}
	if wasDefault {
		s.Log.Debug().Str("customer_id", customerID).Msg("default address deleted, successor promoted")
	}
	return nil
}

// Get returns one address.
func (s *Service) Get(ctx context.Context, customerID string, id uuid.UUID) (Address, error) {
	return s.Store.Get(ctx, customerID, id)
}

// List returns the customer's address book, repairing the default invariant
// first if a previous partial write left it violated.
func (s *Service) List(ctx context.Context, customerID string) ([]Address, error) {
	if _, err := s.Repair(ctx, customerID); err != nil {
		// Listing still works from a degraded book.
		s.Log.Warn().Err(err).Str("customer_id", customerID).Msg("address repair before list failed")
	}
	return s.Store.List(ctx, customerID)
}

// Repair restores the at-most-one-default invariant for one customer under
// the customer lock. It reports whether anything was changed.
func (s *Service) Repair(ctx context.Context, customerID string) (bool, error) {
	lease, err := s.Locks.Acquire(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return false, fmt.Errorf("repair addresses: %w", err)
	}
	defer func() { _ = lease.Release(ctx) }()

	changed, err := s.Store.RepairDefaults(ctx, customerID)
	if err != nil {
		return false, err
	}
	if changed {
		if s.Metrics != nil {
			s.Metrics.DefaultsRepaired.Inc()
		}
		s.Log.Info().Str("customer_id", customerID).Msg("address book repaired")
	}
	return changed, nil
}

// RepairSweep walks customers whose books violate the invariant and repairs
// each. It returns the number of books repaired.
func (s *Service) RepairSweep(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	customers, err := s.Store.CustomersNeedingRepair(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("repair sweep: %w", err)
	}
	repaired := 0
	for _, customerID := range customers {
		changed, err := s.Repair(ctx, customerID)
		if err != nil {
			s.Log.Error().Err(err).Str("customer_id", customerID).Msg("repair sweep entry failed")
			continue
		}
		if changed {
			repaired++
		}
	}
	return repaired, nil
}

func fromInput(customerID string, in Input) Address {
	return Address{
		CustomerID: customerID,
		Label:      strings.TrimSpace(in.Label),
		Recipient:  strings.TrimSpace(in.Recipient),
		Phone:      strings.TrimSpace(in.Phone),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		City:       strings.TrimSpace(in.City),
		Province:   strings.TrimSpace(in.Province),
		PostalCode: strings.TrimSpace(in.PostalCode),
		IsDefault:  in.IsDefault,
	}
}
