/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// AbstractDatabaseManager owns one database handle: it connects, exposes the
// handle in Bun, database/sql and sqlx form, and reports health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	GetSQLX() *sqlx.DB
	WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error
	GetStats() *DBStats
	QueryObserver() QueryObserver
	SetLogger(logger Logger)
	Config() ConnectionConfig
}

type defaultDatabaseManager struct {
	config    *ConnectionConfig
	db        *bun.DB
	sqlDB     *sql.DB
	sqlxDB    *sqlx.DB
	logger    Logger
	mu        sync.RWMutex
	connected bool
	inMemory  bool
	lastError error
	observers QueryObservers
}

var memdbSeq atomic.Int64

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// If config is nil, DefaultConnectionConfig is used.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultDatabaseManager{
		config: config,
		logger: GetLogger(),
	}
}

// Connect opens the handle and pings it. Any failure is returned as a
// *ConnectionError and leaves the manager disconnected.
func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.connected && dm.db != nil {
		return nil
	}

	sqlDB, db, err := dm.createConnection()
	if err != nil {
		dm.lastError = err
		return dm.connectionError(err)
	}

	dm.configureConnectionPool(sqlDB)

	ctxTimeout, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctxTimeout); err != nil {
		_ = db.Close()
		dm.lastError = err
		return dm.connectionError(err)
	}

	dm.sqlDB = sqlDB
	dm.db = db
	dm.sqlxDB = sqlx.NewDb(sqlDB, bindDriverName(dm.config.Type))
	dm.connected = true
	dm.lastError = nil

	if dm.logger != nil {
		dm.logger.Info("Database connected successfully", "type", dm.config.Type, "host", dm.config.Host, "dbname", dm.config.DBName)
	}
	return nil
}

func (dm *defaultDatabaseManager) connectionError(err error) error {
	host := dm.config.Host
	if host != "" && dm.config.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(dm.config.Port))
	}
	if dm.logger != nil {
		dm.logger.Error("Database connection failed", "type", dm.config.Type, "host", host, "error", err)
	}
	return &ConnectionError{Type: dm.config.Type, Host: host, Err: err}
}

func (dm *defaultDatabaseManager) createConnection() (*sql.DB, *bun.DB, error) {
	var sqlDB *sql.DB
	var db *bun.DB
	var err error

	if dm.config.ConnectTimeout <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}

	switch normalizeType(dm.config.Type) {
	case TypeMySQL:
		sqlDB, db, err = dm.createMySQLConnection()
	case TypePostgres:
		sqlDB, db, err = dm.createPostgreSQLConnection()
	case TypeSQLite:
		sqlDB, db, err = dm.createSQLiteConnection()
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %q", dm.config.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv("BUNDEBUG"),
	))
	dm.observers = nil
	if dm.config.EnableQueryLog {
		h := NewQueryHook(os.Stdout)
		db.AddQueryHook(h)
		dm.observers = append(dm.observers, h)
	}
	if dm.config.SlowQueryTime > 0 {
		h := &slowQueryHook{
			threshold: dm.config.SlowQueryTime,
			logger:    dm.logger,
		}
		db.AddQueryHook(h)
		dm.observers = append(dm.observers, h)
	}
	return sqlDB, db, nil
}

// MySQLDSN renders cfg as a go-sql-driver DSN. Credentials are escaped by the
// driver, and affected-row counts report matched rows.
func MySQLDSN(cfg *ConnectionConfig) string {
	port := cfg.Port
	if port <= 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	mc.ClientFoundRows = true
	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}
	return mc.FormatDSN()
}

// PostgresDSN renders cfg as a lib/pq URL.
func PostgresDSN(cfg *ConnectionConfig) string {
	port := cfg.Port
	if port <= 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SQLiteDSN maps DBName to a file name. An empty name or ":memory:" yields a
// private shared-cache in-memory database.
func SQLiteDSN(cfg *ConnectionConfig) (dsn string, inMemory bool) {
	name := strings.TrimSpace(cfg.DBName)
	switch {
	case name == "" || name == ":memory:":
		return fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memdbSeq.Add(1)), true
	case strings.HasPrefix(name, "file:"):
		return name, strings.Contains(name, "mode=memory")
	case strings.HasSuffix(name, ".db"):
		return name, false
	default:
		return name + ".db", false
	}
}

func (dm *defaultDatabaseManager) createMySQLConnection() (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open("mysql", MySQLDSN(dm.config))
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

func (dm *defaultDatabaseManager) createPostgreSQLConnection() (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open("postgres", PostgresDSN(dm.config))
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func (dm *defaultDatabaseManager) createSQLiteConnection() (*sql.DB, *bun.DB, error) {
	dsn, inMemory := SQLiteDSN(dm.config)
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, err
	}
	dm.inMemory = inMemory
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func (dm *defaultDatabaseManager) configureConnectionPool(sqlDB *sql.DB) {
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	if dm.inMemory {
		// an in-memory database lives only as long as one connection stays open
		if dm.config.MaxIdleConns < 1 {
			sqlDB.SetMaxIdleConns(1)
		}
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
		return
	}
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)
}

func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.db == nil {
		return nil
	}

	err := dm.db.Close()
	dm.db = nil
	dm.sqlDB = nil
	dm.sqlxDB = nil
	dm.connected = false

	if dm.logger != nil {
		if err != nil {
			dm.logger.Error("Failed to close database connection", "error", err)
		} else {
			dm.logger.Info("Database connection closed")
		}
	}
	return err
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()

	if db == nil {
		return ErrNotConnected
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultDatabaseManager) GetSQLX() *sqlx.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlxDB
}

// WithConn acquires one dedicated connection from the pool, runs fn with it
// and releases the connection whatever fn returns.
func (dm *defaultDatabaseManager) WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	db := dm.GetSQLX()
	if db == nil {
		return ErrNotConnected
	}
	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && dm.logger != nil {
			dm.logger.Warn("Failed to release connection", "error", cerr)
		}
	}()
	return fn(conn)
}

func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{
		LastCheckTime: start,
		Connected:     dm.connected,
	}

	if dm.db == nil {
		status.LastError = ErrNotConnected.Error()
		return status
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	err := dm.db.PingContext(ctxTimeout)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.Connected = false
		status.LastError = err.Error()
		dm.lastError = err
	} else {
		status.Healthy = true
		status.Connected = true
		dm.lastError = nil
	}

	stats := dm.sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	dm.mu.RLock()
	sqlDB := dm.sqlDB
	dm.mu.RUnlock()

	if sqlDB == nil {
		return &DBStats{}
	}

	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

// QueryObserver returns the query log and slow query hooks installed on the
// Bun handle, for statements executed through GetSQLX.
func (dm *defaultDatabaseManager) QueryObserver() QueryObserver {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return append(QueryObservers(nil), dm.observers...)
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}

func (dm *defaultDatabaseManager) Config() ConnectionConfig {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return *dm.config
}

func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "mysql":
		return TypeMySQL
	case "postgres", "postgresql":
		return TypePostgres
	case "sqlite", "sqlite3":
		return TypeSQLite
	default:
		return t
	}
}

// bindDriverName returns the driver name sqlx uses to pick a placeholder style.
func bindDriverName(t string) string {
	switch normalizeType(t) {
	case TypePostgres:
		return "postgres"
	case TypeSQLite:
		return "sqlite3"
	default:
		return "mysql"
	}
}
