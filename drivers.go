package dbutils

import (
	"database/sql"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
)

// driverSpec describes how a driver class is opened and which bun dialect
// speaks for it.
type driverSpec struct {
	dialect func() schema.Dialect
	open    func(cfg Config) (*sql.DB, error)
}

var drivers = map[string]driverSpec{
	"pg":       {dialect: pgDialect, open: openPGDriver},
	"pgx":      {dialect: pgDialect, open: openPGX},
	"postgres": {dialect: pgDialect, open: openPQ},
	"sqlite3":  {dialect: sqliteDialect, open: openRegistered},
	"sqlite":   {dialect: sqliteDialect, open: openRegistered},
	"mysql":    {dialect: mysqlDialect, open: openMySQL},
}

func pgDialect() schema.Dialect     { return pgdialect.New() }
func sqliteDialect() schema.Dialect { return sqlitedialect.New() }
func mysqlDialect() schema.Dialect  { return mysqldialect.New() }

// Drivers returns the supported driver classes, sorted.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// openPGDriver opens a bun pgdriver connector. pgdriver panics on a malformed
// DSN, which is reported as an error instead.
func openPGDriver(cfg Config) (db *sql.DB, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid pg url: %v", r)
		}
	}()

	opts := []pgdriver.Option{
		pgdriver.WithDSN(cfg.URL),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
		pgdriver.WithReadTimeout(cfg.ReadTimeout),
		pgdriver.WithWriteTimeout(cfg.WriteTimeout),
	}
	if cfg.User != "" {
		opts = append(opts, pgdriver.WithUser(cfg.User))
	}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func openPGX(cfg Config) (*sql.DB, error) {
	cc, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.User != "" {
		cc.User = cfg.User
	}
	if cfg.Password != "" {
		cc.Password = cfg.Password
	}
	cc.ConnectTimeout = cfg.DialTimeout
	return stdlib.OpenDB(*cc), nil
}

func openPQ(cfg Config) (*sql.DB, error) {
	connector, err := pq.NewConnector(pqDSN(cfg.URL, cfg.User, cfg.Password))
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func openMySQL(cfg Config) (*sql.DB, error) {
	dsn := cfg.URL
	if cfg.User != "" && !strings.Contains(dsn, "@") {
		cred := cfg.User
		if cfg.Password != "" {
			cred += ":" + cfg.Password
		}
		dsn = cred + "@" + dsn
	}
	return openDriver(cfg.DriverClass, dsn)
}

func openRegistered(cfg Config) (*sql.DB, error) {
	return openDriver(cfg.DriverClass, cfg.URL)
}

// openDriver opens a driver registered by the caller.
func openDriver(name, dsn string) (*sql.DB, error) {
	if !slices.Contains(sql.Drivers(), name) {
		return nil, fmt.Errorf("driver %q is not registered", name)
	}
	return sql.Open(name, dsn)
}

// pqDSN merges credentials into a lib/pq DSN, URL or key=value form.
func pqDSN(dsn, user, password string) string {
	if user == "" && password == "" {
		return dsn
	}
	if u, err := url.Parse(dsn); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		name, pass := user, password
		if u.User != nil {
			if name == "" {
				name = u.User.Username()
			}
			if pass == "" {
				pass, _ = u.User.Password()
			}
		}
		if pass != "" {
			u.User = url.UserPassword(name, pass)
		} else {
			u.User = url.User(name)
		}
		return u.String()
	}

	quote := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := []string{dsn}
	if user != "" {
		parts = append(parts, "user='"+quote.Replace(user)+"'")
	}
	if password != "" {
		parts = append(parts, "password='"+quote.Replace(password)+"'")
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
