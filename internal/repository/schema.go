package repository

import (
	"database/sql"
	"log"
)

// Migrate applies the billing schema. Statements are idempotent so the server
// can run them on every boot.
func Migrate(db *sql.DB) error {
	log.Println("Running database migrations...")
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Printf("migration failed: %v", err)
			return err
		}
	}
	log.Println("Database migrations completed")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS school_classes (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		grade TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS students (
		id BIGSERIAL PRIMARY KEY,
		student_no TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		class_id BIGINT REFERENCES school_classes (id)
	)`,

	`CREATE TABLE IF NOT EXISTS fee_categories (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS fees (
		id BIGSERIAL PRIMARY KEY,
		category_id BIGINT NOT NULL REFERENCES fee_categories (id),
		name TEXT NOT NULL,
		amount_minor BIGINT NOT NULL CHECK (amount_minor >= 0),
		academic_year TEXT NOT NULL,
		term TEXT NOT NULL DEFAULT 'ANNUAL',
		description TEXT,
		mandatory BOOLEAN NOT NULL DEFAULT TRUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS fee_applicable_classes (
		fee_id BIGINT NOT NULL REFERENCES fees (id) ON DELETE CASCADE,
		class_id BIGINT NOT NULL REFERENCES school_classes (id),
		PRIMARY KEY (fee_id, class_id)
	)`,

	`CREATE TABLE IF NOT EXISTS student_fee_assignments (
		id BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL REFERENCES students (id),
		fee_id BIGINT NOT NULL REFERENCES fees (id),
		academic_year TEXT NOT NULL,
		due_date DATE NOT NULL,
		amount_minor BIGINT NOT NULL CHECK (amount_minor >= 0),
		discount_minor BIGINT NOT NULL DEFAULT 0 CHECK (discount_minor >= 0),
		discount_reason TEXT,
		amount_paid_minor BIGINT NOT NULL DEFAULT 0 CHECK (amount_paid_minor >= 0),
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, fee_id, academic_year)
	)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		assignment_id BIGINT NOT NULL REFERENCES student_fee_assignments (id),
		amount_minor BIGINT NOT NULL CHECK (amount_minor > 0),
		method TEXT NOT NULL,
		transaction_ref TEXT NOT NULL UNIQUE,
		gateway_ref TEXT UNIQUE,
		status TEXT NOT NULL DEFAULT 'PENDING',
		paid_at TIMESTAMPTZ,
		payer_name TEXT,
		payer_phone TEXT,
		payer_email TEXT,
		notes TEXT,
		failure_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS payment_transactions (
		id BIGSERIAL PRIMARY KEY,
		payment_id BIGINT NOT NULL REFERENCES payments (id),
		gateway_ref TEXT,
		transaction_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		gateway_response TEXT,
		webhook_payload TEXT,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		error_message TEXT
	)`,

	// one WEBHOOK row per distinct gateway transaction id; this index is the
	// idempotency authority for concurrent webhook deliveries
	`CREATE UNIQUE INDEX IF NOT EXISTS payment_transactions_webhook_gateway_ref
		ON payment_transactions (gateway_ref)
		WHERE transaction_type = 'WEBHOOK'`,

	`CREATE TABLE IF NOT EXISTS personal_access_tokens (
		id BIGSERIAL PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		user_id BIGINT NOT NULL,
		abilities TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}
