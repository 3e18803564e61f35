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
	"database/sql"
	"errors"

	"github.com/tomoncle/userstore/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

type bunRepository[T any] struct {
	db bun.IDB
}

// NewRepository returns a generic read repository over a Bun handle. T must
// be a Bun model whose primary key column is "id".
func NewRepository[T any](db bun.IDB) Repository[T] {
	return &bunRepository[T]{db: db}
}

func (r *bunRepository[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *bunRepository[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *bunRepository[T]) where(q *bun.SelectQuery, filter *types.QueryFilter) *bun.SelectQuery {
	if filter == nil || filter.Schema == "" {
		return q
	}
	return q.Where(filter.Schema, filter.Args...)
}

// GetOne returns the entity with primary key id, or nil when there is none.
func (r *bunRepository[T]) GetOne(ctx context.Context, id any) (*T, error) {
	entity := new(T)
	if err := r.db.NewSelect().Model(entity).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

func (r *bunRepository[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	entities := make([]*T, 0)
	if err := r.where(r.db.NewSelect().Model(&entities), filter).Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *bunRepository[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	return r.where(r.db.NewSelect().Model((*T)(nil)), filter).Count(ctx)
}

// Page loads one page and the total number of matching rows in one call.
func (r *bunRepository[T]) Page(ctx context.Context, req *types.PageRequest) (*types.Pagination[T], error) {
	page := types.NewPagination[T](req)
	entities := make([]*T, 0, req.GetPageSize())
	total, err := r.where(r.db.NewSelect().Model(&entities), req.GetFilter()).
		Order(req.GetOrders()...).
		Offset(req.GetOffset()).
		Limit(req.GetPageSize()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}
	page.Total = total
	page.Items = entities
	return page, nil
}
