package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// Connect opens and pings a shared Postgres pool. Repositories run
// their own migrations against it with separate migration tables.
func Connect(cred *Credentials) (*sql.DB, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return db, nil
}
