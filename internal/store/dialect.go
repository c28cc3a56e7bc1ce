package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverMySQL    = "mysql"
)

// Dialect isolates the SQL differences between the supported drivers.
type Dialect struct {
	Driver string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres, DriverPgx, DriverMySQL:
		return Dialect{Driver: driver}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// IsMySQL reports whether the dialect is MySQL.
func (d Dialect) IsMySQL() bool {
	return d.Driver == DriverMySQL
}

var (
	postgresDDL = strings.NewReplacer(
		"{{autoinc}}", "BIGSERIAL PRIMARY KEY",
		"{{json}}", "JSONB",
		"{{timestamp}}", "TIMESTAMPTZ",
	)
	mysqlDDL = strings.NewReplacer(
		"{{autoinc}}", "BIGINT AUTO_INCREMENT PRIMARY KEY",
		"{{json}}", "JSON",
		"{{timestamp}}", "DATETIME(6)",
	)
)

// DDL expands the type placeholders of a schema statement.
func (d Dialect) DDL(stmt string) string {
	if d.IsMySQL() {
		return mysqlDDL.Replace(stmt)
	}
	return postgresDDL.Replace(stmt)
}

// InsertIgnore rewrites a plain INSERT so that duplicate keys are skipped.
func (d Dialect) InsertIgnore(insert, conflictColumn string) string {
	if d.IsMySQL() {
		return strings.Replace(insert, "INSERT INTO", "INSERT IGNORE INTO", 1)
	}
	return insert + " ON CONFLICT (" + conflictColumn + ") DO NOTHING"
}

// insertID executes an INSERT and returns the generated id column.
func (d Dialect) insertID(ctx context.Context, ext sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	query = ext.Rebind(query)
	if d.IsMySQL() {
		res, err := ext.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, query+" RETURNING id", args...); err != nil {
		return 0, err
	}
	return id, nil
}

func (d Dialect) normalizeDSN(dsn string) (string, error) {
	if !d.IsMySQL() {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}

// IsUnavailable reports whether err means the database could not be
// reached, as opposed to a query failing.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
