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
	"fmt"
	"net"
	"strconv"
)

var supportedTypes = []string{TypeMySQL, TypePostgres, TypeSQLite}

func validateConfig(cfg *ConnectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	t := normalizeType(cfg.Type)
	for _, s := range supportedTypes {
		if t == s {
			return nil
		}
	}
	return fmt.Errorf("unsupported database type: %q, supported types: %v", cfg.Type, supportedTypes)
}

// Open validates cfg, connects and pings. On failure the returned error is a
// *ConnectionError, or a plain error for an invalid config.
func Open(ctx context.Context, cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	return open(ctx, cfg, GetLogger())
}

func open(ctx context.Context, cfg *ConnectionConfig, logger Logger) (AbstractDatabaseManager, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	manager := NewDatabaseManager(cfg)
	manager.SetLogger(logger)
	if err := manager.Connect(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}

// Bootstrap opens the connection in cfg and, when cfg.Schema.AutoCreateTables
// is set, creates the tables of registered models. A nil logger means the
// package logger.
func Bootstrap(ctx context.Context, cfg *Config, logger Logger) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if logger == nil {
		logger = GetLogger()
	}
	manager, err := open(ctx, &cfg.Connection, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Schema.AutoCreateTables {
		if err := NewSchemaManager(manager.GetDB(), logger).EnsureTables(ctx); err != nil {
			_ = manager.Disconnect()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	logger.Info("Database initialization completed", "type", cfg.Connection.Type, "auto_create_tables", cfg.Schema.AutoCreateTables)
	return manager, nil
}

// OpenMySQL connects to a MySQL database with default pool settings. host may
// carry a port ("db:3307").
func OpenMySQL(ctx context.Context, host, username, password, dbName string) (AbstractDatabaseManager, error) {
	cfg := DefaultConnectionConfig()
	cfg.Type = TypeMySQL
	cfg.Host = host
	if h, p, err := net.SplitHostPort(host); err == nil {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Host, cfg.Port = h, port
		}
	}
	cfg.Username = username
	cfg.Password = password
	cfg.DBName = dbName
	return Open(ctx, cfg)
}
