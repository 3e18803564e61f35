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

	"github.com/uptrace/bun"
)

// SchemaManager creates tables for registered models. It never alters or
// drops existing tables.
type SchemaManager struct {
	db     bun.IDB
	logger Logger
	models func() []interface{}
}

// NewSchemaManager returns a SchemaManager over the default model registry.
func NewSchemaManager(db bun.IDB, logger Logger) *SchemaManager {
	if logger == nil {
		logger = NopLogger()
	}
	return &SchemaManager{db: db, logger: logger, models: RegisteredModelInstances}
}

// WithModels replaces the registry lookup with a fixed model list.
func (sm *SchemaManager) WithModels(models ...interface{}) *SchemaManager {
	sm.models = func() []interface{} { return models }
	return sm
}

// EnsureTables issues CREATE TABLE IF NOT EXISTS for every model.
func (sm *SchemaManager) EnsureTables(ctx context.Context) error {
	if sm.db == nil {
		return ErrNotConnected
	}
	for _, model := range sm.models() {
		q := sm.db.NewCreateTable().Model(model).IfNotExists()
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", q.GetTableName(), err)
		}
		sm.logger.Debug("Table ensured", "table", q.GetTableName())
	}
	return nil
}
