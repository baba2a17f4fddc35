package config

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// InitDatabase opens and pings a connection pool for the relational drivers.
func InitDatabase(ctx context.Context, cfg DatabaseConfig) (*sql.DB, string, error) {
	driver, err := cfg.Driver()
	if err != nil {
		return nil, "", err
	}
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if driver == DriverSQLite {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, driver, nil
}

// DataSourceName converts the configured URL into the form the selected
// database/sql driver expects.
func (db DatabaseConfig) DataSourceName() (string, error) {
	driver, err := db.Driver()
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(db.URL)

	switch driver {
	case DriverPostgres:
		return postgresDSN(raw)
	case DriverMySQL:
		return mysqlDSN(raw)
	case DriverSQLite:
		return sqliteDSN(raw), nil
	default:
		return "", fmt.Errorf("driver %s has no SQL data source", driver)
	}
}

func postgresDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse postgres url: %w", err)
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func mysqlDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" && u.Host != "" {
		cfg.Addr = u.Host + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.ParseTime = true

	// URL query parameters are driver options (tls, charset, timeout, ...)
	// or session variables, exactly as in a native DSN.
	if u.RawQuery != "" {
		cfg, err = mysql.ParseDSN(cfg.FormatDSN() + "&" + u.Query().Encode())
		if err != nil {
			return "", fmt.Errorf("parse mysql url options: %w", err)
		}
	}

	// The repository depends on these regardless of the URL.
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// UPDATE must report matched rows, not changed rows.
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func sqliteDSN(raw string) string {
	if strings.HasPrefix(raw, "file:") {
		return raw
	}
	_, path, _ := strings.Cut(raw, "://")
	return path
}
