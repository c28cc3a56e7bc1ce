package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dealer-portal/internal/ident"
	"dealer-portal/internal/models"

	"github.com/jmoiron/sqlx"
)

const dealerColumns = "dealer_id, name, email, phone, business_name, password_hash, created_at"

// GetDealer returns a dealer by id.
func (s *Store) GetDealer(ctx context.Context, dealerID string) (*models.Dealer, error) {
	return s.getDealer(ctx, "dealer_id", dealerID)
}

// GetDealerByEmail returns a dealer by sign-in email.
func (s *Store) GetDealerByEmail(ctx context.Context, email string) (*models.Dealer, error) {
	return s.getDealer(ctx, "email", email)
}

func (s *Store) getDealer(ctx context.Context, column, value string) (*models.Dealer, error) {
	var d models.Dealer
	err := s.db.GetContext(ctx, &d,
		s.q("SELECT "+dealerColumns+" FROM dealers WHERE "+column+" = ?"), value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dealer %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDealer inserts a dealer, assigning a DLR id when none is set.
func (s *Store) CreateDealer(ctx context.Context, d *models.Dealer) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if d.DealerID == "" {
			id, err := s.nextID(ctx, tx, "dealers", "dealer_id", ident.PrefixDealer, "")
			if err != nil {
				return err
			}
			d.DealerID = id
		}
		d.CreatedAt = s.now()

		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO dealers (dealer_id, name, email, phone, business_name, password_hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			d.DealerID, d.Name, d.Email, d.Phone, d.BusinessName, d.PasswordHash, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert dealer: %w", mapErr(err))
		}
		return nil
	})
}

// nextID looks for the next free prefix+dealerNumber+sequence id of table.
func (s *Store) nextID(ctx context.Context, tx *sqlx.Tx, table, column, prefix, dealerNumber string) (string, error) {
	var existing []string
	err := tx.SelectContext(ctx, &existing,
		s.q("SELECT "+column+" FROM "+table+" WHERE "+column+" LIKE ?"),
		prefix+dealerNumber+"%")
	if err != nil {
		return "", fmt.Errorf("failed to scan %s ids: %w", table, err)
	}

	return ident.NextID(prefix, dealerNumber, existing, func(candidate string) (bool, error) {
		var n int
		err := tx.GetContext(ctx, &n,
			s.q("SELECT COUNT(*) FROM "+table+" WHERE "+column+" = ?"), candidate)
		return n > 0, err
	})
}
