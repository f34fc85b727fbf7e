package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type key int

const ctxKey key = 0

// WithLogging marks ctx so queries issued with it are logged when the
// database was opened in debug mode.
func WithLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey, true)
}

type logQueryHook struct {
	log logger.Logger
}

func (*logQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *logQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if enabled, ok := ctx.Value(ctxKey).(bool); !ok || !enabled {
		return
	}
	data := logger.Data{"duration": time.Since(event.StartTime).String()}
	if event.Err != nil {
		data["error"] = event.Err.Error()
	}
	qh.log.Debug(event.Query, data)
}

type pragma struct {
	query string
	arg   interface{}
	what  string
}

// pragmas run on the single connection right after it is opened. Book blobs
// are large, so WAL keeps readers from blocking on an upload in progress.
func pragmas(cfg *config.Config) []pragma {
	return []pragma{
		{"PRAGMA journal_mode=WAL", nil, "enable WAL mode"},
		{"PRAGMA busy_timeout=?", cfg.DatabaseBusyTimeout.Milliseconds(), "set busy_timeout"},
		{"PRAGMA foreign_keys=ON", nil, "enable foreign keys"},
		{"PRAGMA synchronous=NORMAL", nil, "set synchronous mode"},
	}
}

// New opens the SQLite database at cfg.DatabaseFilePath. Statements that hit
// SQLITE_BUSY are retried up to cfg.DatabaseMaxRetries times.
func New(cfg *config.Config) (*bun.DB, error) {
	connector, err := openConnector(sqliteshim.Driver(), cfg.DatabaseFilePath)
	if err != nil {
		return nil, err
	}

	sqldb := sql.OpenDB(newRetryConnector(connector, cfg.DatabaseMaxRetries))
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across every query.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if cfg.DatabaseDebug {
		db.AddQueryHook(&logQueryHook{logger.NewWithLevel("debug")})
	}

	if err := ping(db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}

	for _, p := range pragmas(cfg) {
		var args []interface{}
		if p.arg != nil {
			args = append(args, p.arg)
		}
		if _, err := db.Exec(p.query, args...); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "failed to %s", p.what)
		}
	}

	return db, nil
}

// dsnConnector adapts a driver without OpenConnector, which is the case for
// both drivers sqliteshim may pick.
type dsnConnector struct {
	drv driver.Driver
	dsn string
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.drv.Open(c.dsn)
}

func (c dsnConnector) Driver() driver.Driver {
	return c.drv
}

func openConnector(drv driver.Driver, dsn string) (driver.Connector, error) {
	if dc, ok := drv.(driver.DriverContext); ok {
		connector, err := dc.OpenConnector(dsn)
		return connector, errors.WithStack(err)
	}
	return dsnConnector{drv: drv, dsn: dsn}, nil
}

func ping(db *bun.DB, cfg *config.Config) error {
	log := logger.New()
	attempts := cfg.DatabaseConnectRetryCount
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		if i < attempts {
			log.Err(err).Warn("database not ready", logger.Data{"attempt": i, "path": cfg.DatabaseFilePath})
			time.Sleep(cfg.DatabaseConnectRetryDelay)
		}
	}
	return errors.Wrap(err, "failed to connect to database")
}
