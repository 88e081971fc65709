package repository

import "fmt"

// Schema definitions for the retirement calculator database.
// Compatible with both SQLite and PostgreSQL; only the identity column differs.

const schemaLifestyleDeposits = `
CREATE TABLE IF NOT EXISTS lifestyle_deposits (
    id %s,
    lifestyle_key TEXT NOT NULL UNIQUE,
    lifestyle_type TEXT NOT NULL,
    monthly_deposit TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaCalculations = `
CREATE TABLE IF NOT EXISTS calculations (
    id TEXT PRIMARY KEY,
    current_age INTEGER NOT NULL,
    retirement_age INTEGER NOT NULL,
    interest_rate TEXT NOT NULL,
    lifestyle_type TEXT NOT NULL,
    monthly_deposit TEXT NOT NULL,
    future_value TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculations_created ON calculations(created_at);
CREATE INDEX IF NOT EXISTS idx_calculations_lifestyle ON calculations(lifestyle_type);
`

// AllSchemas returns all schema statements in order for the given driver.
func AllSchemas(driver string) []string {
	identity := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		identity = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		fmt.Sprintf(schemaLifestyleDeposits, identity),
		schemaCalculations,
	}
}
