package store

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dealers (
		dealer_id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		business_name VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at {{timestamp}} NOT NULL,
		UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS brands (
		id {{autoinc}},
		dealer_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		description TEXT,
		created_at {{timestamp}} NOT NULL,
		UNIQUE (dealer_id, name),
		UNIQUE (dealer_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS sub_brands (
		id {{autoinc}},
		brand_id BIGINT NOT NULL,
		dealer_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		description TEXT,
		created_at {{timestamp}} NOT NULL,
		UNIQUE (brand_id, name),
		UNIQUE (dealer_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		category_id VARCHAR(64) PRIMARY KEY,
		dealer_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		description TEXT,
		created_at {{timestamp}} NOT NULL,
		UNIQUE (dealer_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS sub_categories (
		id {{autoinc}},
		category_id VARCHAR(64) NOT NULL,
		dealer_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		description TEXT,
		created_at {{timestamp}} NOT NULL,
		UNIQUE (dealer_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id VARCHAR(64) PRIMARY KEY,
		dealer_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		description TEXT,
		price DECIMAL(12,2) NOT NULL,
		stock INT NOT NULL,
		category_id VARCHAR(64),
		sub_category_id BIGINT,
		brand_id BIGINT,
		sub_brand_id BIGINT,
		created_at {{timestamp}} NOT NULL,
		UNIQUE (dealer_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id VARCHAR(64) PRIMARY KEY,
		dealer_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		customer_name VARCHAR(255) NOT NULL,
		customer_email VARCHAR(255) NOT NULL,
		customer_phone VARCHAR(32) NOT NULL,
		shipping_address TEXT NOT NULL,
		shipping_pincode VARCHAR(16) NOT NULL,
		order_status VARCHAR(32) NOT NULL,
		payment_status VARCHAR(32) NOT NULL,
		total_amount DECIMAL(12,2) NOT NULL,
		tax_amount DECIMAL(12,2) NOT NULL,
		shipping_cost DECIMAL(12,2) NOT NULL,
		discount_amount DECIMAL(12,2) NOT NULL,
		payment_method VARCHAR(32) NOT NULL,
		transaction_id VARCHAR(128) NOT NULL,
		order_date {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id {{autoinc}},
		type VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		description TEXT,
		for_admin BOOLEAN NOT NULL,
		for_dealer BOOLEAN NOT NULL,
		for_user BOOLEAN NOT NULL,
		for_vendor BOOLEAN NOT NULL,
		dealer_id VARCHAR(64) NOT NULL,
		order_id VARCHAR(64),
		is_read BOOLEAN NOT NULL,
		metadata {{json}},
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id {{autoinc}},
		event_id VARCHAR(64) NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		aggregate_id VARCHAR(64) NOT NULL,
		dealer_id VARCHAR(64) NOT NULL,
		payload TEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		attempts INT NOT NULL,
		next_attempt_at {{timestamp}} NOT NULL,
		last_error TEXT,
		created_at {{timestamp}} NOT NULL,
		published_at {{timestamp}} NULL,
		UNIQUE (event_id)
	)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id VARCHAR(64) PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		processed_at {{timestamp}} NOT NULL
	)`,
}

type index struct {
	name    string
	table   string
	columns string
}

var indexes = []index{
	{"idx_orders_dealer_status", "orders", "dealer_id, order_status"},
	{"idx_orders_user", "orders", "user_id"},
	{"idx_notifications_dealer", "notifications", "dealer_id, id"},
	{"idx_notifications_order", "notifications", "dealer_id, order_id"},
	{"idx_outbox_due", "outbox_events", "status, next_attempt_at"},
	{"idx_products_dealer", "products", "dealer_id"},
}

// Migrate creates the tables and indexes that do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, s.dialect.DDL(stmt)); err != nil {
			return fmt.Errorf("failed to migrate %q: %w", firstLine(stmt), err)
		}
	}

	for _, idx := range indexes {
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if !s.dialect.IsMySQL() {
			stmt = strings.Replace(stmt, "CREATE INDEX", "CREATE INDEX IF NOT EXISTS", 1)
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}
