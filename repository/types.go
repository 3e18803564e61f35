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

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/tomoncle/userstore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// DBTX is satisfied by *sqlx.DB, *sqlx.Conn and *sqlx.Tx.
type DBTX interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// ReadRepository defines lookups for a generic entity type.
type ReadRepository[T any] interface {
	GetOne(ctx context.Context, id any) (*T, error)

	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	Count(ctx context.Context, filter *types.QueryFilter) (int, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines lookups and pagination and exposes the Bun select
// builder for advanced use cases.
type Repository[T any] interface {
	ReadRepository[T]
	PageQueryRepository[T]
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
}
