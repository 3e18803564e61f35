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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/userstore/models"
	"github.com/tomoncle/userstore/types"
	"github.com/uptrace/bun/dialect"
)

func TestRepository_GenericReads(t *testing.T) {
	users, m := newSQLiteRepo(t)
	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		_, err := users.CreateUser(ctx, name, name+"@x.com", "pw")
		require.NoError(t, err)
	}

	repo := NewRepository[models.User](m.GetDB())
	assert.Equal(t, dialect.SQLite, repo.Dialect().Name())

	u, err := repo.GetOne(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "bob", u.Username)

	missing, err := repo.GetOne(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := repo.List(ctx, types.NewQueryFilter("name_user = ?", "alice"))
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "alice@x.com", some[0].Email)

	n, err := repo.Count(ctx, types.NewQueryFilter("email LIKE ?", "%@x.com"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	empty, err := repo.Page(ctx, types.NewPageRequest(1, 10, types.NewQueryFilter("id > ?", 100)))
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.Items)

	var ids []int64
	require.NoError(t, repo.NewSelect().Model((*models.User)(nil)).Column("id").Order("id DESC").Scan(ctx, &ids))
	assert.Equal(t, []int64{2, 1}, ids)
}
