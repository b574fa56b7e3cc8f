package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Create users table
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			display_name VARCHAR(100) NOT NULL DEFAULT '',
			role VARCHAR(20) NOT NULL DEFAULT 'trader' CHECK (role IN ('trader', 'investor')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

		// Create trades table. profit_loss is mandatory for investment
		// categories; spot and futures derive PnL instead.
		`CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			category VARCHAR(20) NOT NULL CHECK (category IN
				('spot', 'futures', 'defi', 'dual_investment', 'liquidity_pool', 'liquidity_mining')),
			asset VARCHAR(20) NOT NULL,
			price DECIMAL(20, 8) NOT NULL CHECK (price > 0),
			currency VARCHAR(3) NOT NULL DEFAULT 'USD' CHECK (currency IN ('USD', 'PHP')),
			quantity DECIMAL(20, 8) NOT NULL CHECK (quantity > 0),
			fees DECIMAL(20, 8) NOT NULL DEFAULT 0 CHECK (fees >= 0),
			profit_loss DECIMAL(20, 8),
			details JSONB,
			notes TEXT,
			transacted_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT investment_requires_pnl CHECK (
				category IN ('spot', 'futures') OR profit_loss IS NOT NULL
			)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user_id ON trades(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_category ON trades(category)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_transacted_at ON trades(transacted_at)`,

		// Create cashflows table
		`CREATE TABLE IF NOT EXISTS cashflows (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type VARCHAR(10) NOT NULL CHECK (type IN ('deposit', 'withdrawal')),
			amount DECIMAL(20, 8) NOT NULL CHECK (amount > 0),
			currency VARCHAR(3) NOT NULL DEFAULT 'USD' CHECK (currency IN ('USD', 'PHP')),
			label VARCHAR(100) NOT NULL DEFAULT '',
			notes TEXT,
			transacted_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cashflows_user_id ON cashflows(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cashflows_transacted_at ON cashflows(transacted_at)`,

		// Create bindings table (investor -> trader read access)
		`CREATE TABLE IF NOT EXISTS bindings (
			id UUID PRIMARY KEY,
			investor_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			trader_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status VARCHAR(10) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (investor_id, trader_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_investor_id ON bindings(investor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_trader_id ON bindings(trader_id)`,

		// Append-only audit trail of ledger mutations
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL,
			action VARCHAR(10) NOT NULL,
			entity VARCHAR(20) NOT NULL,
			entity_id UUID NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_user_id ON audit_log(user_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed")
	return nil
}
