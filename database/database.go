package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bitterfly/go-chaos/whoami/schema"
	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type ErrorType int

const (
	InsertError ErrorType = iota
	ConflictError
	OpenError
	ConfigError
	MigrateError
	UpdateError
	QueryError
	NotFoundError
)

type DatabaseError struct {
	ErrorType ErrorType
	msg       error
}

func (e *DatabaseError) Error() string {
	return e.msg.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.msg
}

func newDatabaseError(t ErrorType, prefix string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{
		ErrorType: t,
		msg:       fmt.Errorf("%s: %w", prefix, err),
	}
}

func newMigrateError(err error) error {
	return newDatabaseError(MigrateError, "database migrate error", err)
}

func newConflictError(err error) error {
	return newDatabaseError(ConflictError, "database create error", err)
}

func newOpenError(err error) error {
	return newDatabaseError(OpenError, "database open error", err)
}

func newInsertError(err error) error {
	return newDatabaseError(InsertError, "database insert error", err)
}

func newConfigError(err error) error {
	return newDatabaseError(ConfigError, "database config error", err)
}

func newUpdateError(err error) error {
	return newDatabaseError(UpdateError, "database update error", err)
}

// newQueryError reports a missing record as NotFoundError so callers can
// tell an absent game apart from a broken connection.
func newQueryError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newDatabaseError(NotFoundError, "database query error", err)
	}
	return newDatabaseError(QueryError, "database query error", err)
}

func hasType(err error, t ErrorType) bool {
	var derr *DatabaseError
	return errors.As(err, &derr) && derr.ErrorType == t
}

func IsNotFound(err error) bool {
	return hasType(err, NotFoundError)
}

func IsConflict(err error) bool {
	return hasType(err, ConflictError)
}

// Open connects to the configured driver. The sqlite driver keeps a single
// connection, so every transaction on the file is serialized.
func Open(driver, dsn string, log *zap.Logger, verbose bool) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if verbose {
		gormConfig.Logger = logger.New(
			zap.NewStdLog(log.Named("gorm")),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Info,
				IgnoreRecordNotFoundError: true,
			},
		)
	}

	switch driver {
	case DriverSQLite:
		return openSQLite(dsn, gormConfig, log)
	case DriverPostgres:
		return openPostgres(dsn, gormConfig)
	default:
		return nil, newConfigError(fmt.Errorf("unknown driver %q", driver))
	}
}

func openSQLite(path string, gormConfig *gorm.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, newOpenError(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, newOpenError(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		log.Warn("could not enable WAL mode", zap.Error(err))
	}
	if err := db.Exec("PRAGMA busy_timeout=5000;").Error; err != nil {
		log.Warn("could not set busy timeout", zap.Error(err))
	}
	if err := db.Exec("PRAGMA foreign_keys=ON;").Error; err != nil {
		log.Warn("could not enable foreign keys", zap.Error(err))
	}
	return db, nil
}

func openPostgres(dsn string, gormConfig *gorm.Config) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, newOpenError(err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, newOpenError(err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(pgdriver.New(pgdriver.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		sqlDB.Close()
		return nil, newOpenError(err)
	}
	return db, nil
}

func Automigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schema.Game{}); err != nil {
		return newMigrateError(fmt.Errorf("schema game, %w", err))
	}
	if err := db.AutoMigrate(&schema.Player{}); err != nil {
		return newMigrateError(fmt.Errorf("schema player, %w", err))
	}
	if err := db.AutoMigrate(&schema.Pair{}); err != nil {
		return newMigrateError(fmt.Errorf("schema pair, %w", err))
	}
	if err := db.AutoMigrate(&schema.PlayerWord{}); err != nil {
		return newMigrateError(fmt.Errorf("schema player word, %w", err))
	}
	return nil
}
