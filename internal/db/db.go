package db

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"wishdoc/internal/config"
)

// ConnString builds the Postgres connection string from config.
func ConnString(conf *config.Config) string {
	str := fmt.Sprintf("postgresql://%v:%v@%v:%v/%v", conf.DB_USERNAME, conf.DB_PASSWORD, conf.DB_HOST, conf.DB_PORT, conf.DB_NAME)
	if conf.DISABLE_TLS == "true" {
		str = str + "?sslmode=disable"
	}
	return str
}

// NewConn opens a connection to the document database. An unreachable
// database is returned as an error rather than aborting the process;
// callers decide whether it is fatal.
func NewConn(conf *config.Config) (*sqlx.DB, error) {
	slog.Info("Connecting to database")

	db, err := sqlx.Open("postgres", ConnString(conf))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	slog.Info("Connected to database")

	return db, nil
}
