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
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/userstore/database"
	"github.com/tomoncle/userstore/models"
	"github.com/tomoncle/userstore/security"
	"github.com/tomoncle/userstore/types"
	"golang.org/x/crypto/bcrypt"
)

const sqliteUsersDDL = `CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name_user TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_user TEXT NOT NULL
)`

func newSQLiteRepo(t *testing.T) (*UserRepository, database.AbstractDatabaseManager) {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.Type = database.TypeSQLite
	cfg.DBName = ":memory:"
	cfg.SlowQueryTime = 0

	m, err := database.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Disconnect() })

	_, err = m.GetSQLX().Exec(sqliteUsersDDL)
	require.NoError(t, err)

	repo := NewUserRepository(m.GetSQLX(), m.GetDB(), security.NewBcryptHasher(bcrypt.MinCost))
	repo.SetLogger(nil)
	return repo, m
}

func ptr(s string) *string { return &s }

func TestUserRepository_AddAndRead(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	ok, err := repo.AddUser(ctx, "alice", "a@x.com", "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := repo.ReadUser(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "a@x.com", u.Email)
	assert.NotEmpty(t, u.PasswordHash)
	assert.NotEqual(t, "secret", u.PasswordHash)
	assert.True(t, repo.hasher.Verify(u.PasswordHash, "secret"))

	fields := u.Fields()
	assert.Equal(t, "alice", fields[models.ColumnUsername])
	assert.Equal(t, "a@x.com", fields[models.ColumnEmail])
}

func TestUserRepository_CreateUserReturnsID(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	first, err := repo.CreateUser(ctx, "alice", "a@x.com", "secret")
	require.NoError(t, err)
	second, err := repo.CreateUser(ctx, "bob", "b@x.com", "hunter2")
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	got, err := repo.ReadUser(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Username, got.Username)
	assert.Equal(t, second.PasswordHash, got.PasswordHash)
}

func TestUserRepository_QuotesAreData(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	name := "O'Brien"
	email := "ob@x.com'; DROP TABLE users; --"
	u, err := repo.CreateUser(ctx, name, email, "pw")
	require.NoError(t, err)

	got, err := repo.ReadUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, name, got.Username)
	assert.Equal(t, email, got.Email)

	n, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUserRepository_ReadMissing(t *testing.T) {
	repo, _ := newSQLiteRepo(t)

	u, err := repo.ReadUser(context.Background(), 42)
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepository_Update(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "a@x.com", "secret")
	require.NoError(t, err)

	ok, err := repo.UpdateUser(ctx, u.ID, "alice2", "a2@x.com", "newsecret")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.ReadUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)
	assert.Equal(t, "a2@x.com", got.Email)
	assert.True(t, repo.hasher.Verify(got.PasswordHash, "newsecret"))
	assert.False(t, repo.hasher.Verify(got.PasswordHash, "secret"))
}

func TestUserRepository_UpdateMissing(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "a@x.com", "secret")
	require.NoError(t, err)

	ok, err := repo.UpdateUser(ctx, u.ID+100, "x", "x@x.com", "pw")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.ReadUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
}

func TestUserRepository_DeleteIsIdempotent(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "a@x.com", "secret")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteUser(ctx, u.ID))
	require.NoError(t, repo.DeleteUser(ctx, u.ID))
	require.NoError(t, repo.DeleteUser(ctx, 9999))

	got, err := repo.ReadUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserRepository_Patch(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "alice", "a@x.com", "secret")
	require.NoError(t, err)

	ok, err := repo.PatchUser(ctx, u.ID, models.UserPatch{Email: ptr("new@x.com")})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.ReadUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "new@x.com", got.Email)
	assert.Equal(t, u.PasswordHash, got.PasswordHash, "password must not be rehashed")

	ok, err = repo.PatchUser(ctx, u.ID, models.UserPatch{Password: ptr("changed")})
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = repo.ReadUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, repo.hasher.Verify(got.PasswordHash, "changed"))

	ok, err = repo.PatchUser(ctx, u.ID+1, models.UserPatch{Username: ptr("ghost")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserRepository_Validation(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.AddUser(ctx, "", "a@x.com", "secret")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = repo.CreateUser(ctx, "alice", "", "secret")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = repo.UpdateUser(ctx, 1, "alice", "a@x.com", "")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = repo.PatchUser(ctx, 1, models.UserPatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
	_, err = repo.PatchUser(ctx, 1, models.UserPatch{Username: ptr("")})
	assert.ErrorIs(t, err, ErrMissingField)

	n, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.AddUser(ctx, "alice", "a@x.com", "secret")
	require.NoError(t, err)

	ok, err := repo.AddUser(ctx, "alice", "a@x.com", "secret")
	require.Error(t, err)
	assert.False(t, ok)

	var ce *database.ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, database.DuplicateKeyErr, ce.Kind)
}

func TestUserRepository_ListUsers(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := repo.CreateUser(ctx, name, name+"@x.com", "pw")
		require.NoError(t, err)
	}

	page, err := repo.ListUsers(ctx, types.NewPageRequest(1, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "alice", page.Items[0].Username)
	assert.Equal(t, "bob", page.Items[1].Username)

	page, err = repo.ListUsers(ctx, types.NewPageRequest(2, 2, nil))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "carol", page.Items[0].Username)

	filtered, err := repo.ListUsers(ctx, types.NewPageRequest(1, 10, types.NewQueryFilter("email = ?", "bob@x.com")))
	require.NoError(t, err)
	require.Len(t, filtered.Items, 1)
	assert.Equal(t, "bob", filtered.Items[0].Username)

	n, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUserRepository_ListWithoutBun(t *testing.T) {
	repo, m := newSQLiteRepo(t)
	plain := NewUserRepository(m.GetSQLX(), nil, repo.hasher)

	_, err := plain.ListUsers(context.Background(), nil)
	assert.ErrorIs(t, err, database.ErrNotConnected)
	_, err = plain.CountUsers(context.Background())
	assert.ErrorIs(t, err, database.ErrNotConnected)
}

func TestUserRepository_Session(t *testing.T) {
	repo, m := newSQLiteRepo(t)
	ctx := context.Background()

	var id int64
	err := m.WithConn(ctx, func(conn *sqlx.Conn) error {
		s := repo.Session(conn)
		u, err := s.CreateUser(ctx, "alice", "a@x.com", "secret")
		if err != nil {
			return err
		}
		id = u.ID
		got, err := s.ReadUser(ctx, id)
		if err != nil {
			return err
		}
		assert.Equal(t, "alice", got.Username)
		return nil
	})
	require.NoError(t, err)

	got, err := repo.ReadUser(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@x.com", got.Email)
}
