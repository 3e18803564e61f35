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
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tomoncle/userstore/database"
	"github.com/tomoncle/userstore/models"
	"github.com/tomoncle/userstore/security"
	"github.com/tomoncle/userstore/types"
	"github.com/tomoncle/userstore/utils"
	"github.com/uptrace/bun"
)

var (
	// ErrMissingField is returned when a required user field is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrEmptyPatch is returned by PatchUser when no field is set.
	ErrEmptyPatch = errors.New("patch changes no field")
)

const (
	insertUserSQL = `INSERT INTO users (Name_user, email, Password_user) VALUES (?, ?, ?)`
	selectUserSQL = `SELECT ID AS id, Name_user AS name_user, email AS email, Password_user AS password_user FROM users WHERE ID = ?`
	updateUserSQL = `UPDATE users SET Name_user = ?, email = ?, Password_user = ? WHERE ID = ?`
	deleteUserSQL = `DELETE FROM users WHERE ID = ?`
)

// UserRepository runs parameter-bound CRUD against the users table. Values
// never reach the SQL text; placeholders are rebound for the target driver.
type UserRepository struct {
	db       DBTX
	bindType int
	pages    Repository[models.User]
	hasher   security.PasswordHasher
	logger   database.Logger
	observer database.QueryObserver
}

// NewUserRepository builds a repository over db. bunDB serves ListUsers and
// CountUsers and may be nil when those are not needed.
func NewUserRepository(db *sqlx.DB, bunDB bun.IDB, hasher security.PasswordHasher) *UserRepository {
	r := &UserRepository{
		db:       db,
		bindType: sqlx.BindType(db.DriverName()),
		hasher:   hasher,
		logger:   database.GetLogger(),
	}
	if bunDB != nil {
		r.pages = NewRepository[models.User](bunDB)
	}
	return r
}

// Session returns a copy of the repository whose CRUD operations run on conn.
func (r *UserRepository) Session(conn *sqlx.Conn) *UserRepository {
	s := *r
	s.db = conn
	return &s
}

// SetLogger replaces the logger; nil discards output.
func (r *UserRepository) SetLogger(logger database.Logger) {
	if logger == nil {
		logger = database.NopLogger()
	}
	r.logger = logger
}

// SetQueryObserver routes every CRUD statement to o, typically the manager's
// query log and slow query hooks.
func (r *UserRepository) SetQueryObserver(o database.QueryObserver) {
	r.observer = o
}

func (r *UserRepository) observe(ctx context.Context, query string, start time.Time, err error) {
	if r.observer != nil {
		r.observer.ObserveQuery(ctx, query, start, err)
	}
}

// AddUser hashes plaintext and inserts a row. It reports whether a row was
// written.
func (r *UserRepository) AddUser(ctx context.Context, username, email, plaintext string) (bool, error) {
	_, affected, err := r.insert(ctx, username, email, plaintext)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CreateUser behaves like AddUser and returns the stored user with its id.
func (r *UserRepository) CreateUser(ctx context.Context, username, email, plaintext string) (*models.User, error) {
	u, _, err := r.insert(ctx, username, email, plaintext)
	return u, err
}

func (r *UserRepository) insert(ctx context.Context, username, email, plaintext string) (*models.User, int64, error) {
	if err := requireFields(username, email, plaintext); err != nil {
		return nil, 0, err
	}
	hash, err := r.hasher.Hash(plaintext)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to hash password: %w", err)
	}

	start := time.Now()
	u := &models.User{Username: username, Email: email, PasswordHash: hash}
	var affected int64
	if r.bindType == sqlx.DOLLAR {
		q := sqlx.Rebind(r.bindType, insertUserSQL+" RETURNING ID")
		err := r.db.QueryRowxContext(ctx, q, username, email, hash).Scan(&u.ID)
		r.observe(ctx, q, start, err)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to insert user: %w", database.WrapConstraint(err))
		}
		affected = 1
	} else {
		q := sqlx.Rebind(r.bindType, insertUserSQL)
		res, err := r.db.ExecContext(ctx, q, username, email, hash)
		r.observe(ctx, q, start, err)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to insert user: %w", database.WrapConstraint(err))
		}
		if affected, err = res.RowsAffected(); err != nil {
			return nil, 0, err
		}
		if u.ID, err = res.LastInsertId(); err != nil {
			return nil, 0, err
		}
	}
	r.logger.Debug("User inserted", "id", u.ID, "duration", utils.Since(start))
	return u, affected, nil
}

// ReadUser returns the user with the given id, or nil when no row matches.
func (r *UserRepository) ReadUser(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()
	var u models.User
	q := sqlx.Rebind(r.bindType, selectUserSQL)
	err := sqlx.GetContext(ctx, r.db, &u, q, id)
	r.observe(ctx, q, start, err)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Debug("User not found", "id", id, "duration", utils.Since(start))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %d: %w", id, err)
	}
	r.logger.Debug("User read", "id", id, "duration", utils.Since(start))
	return &u, nil
}

// UpdateUser overwrites all three fields of an existing row and rehashes the
// password. It returns false when id does not exist.
func (r *UserRepository) UpdateUser(ctx context.Context, id int64, username, email, plaintext string) (bool, error) {
	if err := requireFields(username, email, plaintext); err != nil {
		return false, err
	}
	hash, err := r.hasher.Hash(plaintext)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	return r.exec(ctx, "update", id, sqlx.Rebind(r.bindType, updateUserSQL), username, email, hash, id)
}

// PatchUser changes only the fields set in patch. The password is rehashed
// only when supplied. It returns false when id does not exist.
func (r *UserRepository) PatchUser(ctx context.Context, id int64, patch models.UserPatch) (bool, error) {
	if patch.IsEmpty() {
		return false, ErrEmptyPatch
	}

	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if patch.Username != nil {
		if *patch.Username == "" {
			return false, fmt.Errorf("%w: %s", ErrMissingField, "username")
		}
		sets = append(sets, models.ColumnUsername+" = ?")
		args = append(args, *patch.Username)
	}
	if patch.Email != nil {
		if *patch.Email == "" {
			return false, fmt.Errorf("%w: %s", ErrMissingField, "email")
		}
		sets = append(sets, models.ColumnEmail+" = ?")
		args = append(args, *patch.Email)
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return false, fmt.Errorf("%w: %s", ErrMissingField, "password")
		}
		hash, err := r.hasher.Hash(*patch.Password)
		if err != nil {
			return false, fmt.Errorf("failed to hash password: %w", err)
		}
		sets = append(sets, models.ColumnPasswordHash+" = ?")
		args = append(args, hash)
	}
	args = append(args, id)

	q := "UPDATE " + models.UsersTable + " SET " + strings.Join(sets, ", ") + " WHERE " + models.ColumnID + " = ?"
	return r.exec(ctx, "patch", id, sqlx.Rebind(r.bindType, q), args...)
}

// DeleteUser removes the row with the given id. Deleting an absent id is not
// an error.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	_, err := r.exec(ctx, "delete", id, sqlx.Rebind(r.bindType, deleteUserSQL), id)
	return err
}

func (r *UserRepository) exec(ctx context.Context, op string, id int64, query string, args ...interface{}) (bool, error) {
	start := time.Now()
	res, err := r.db.ExecContext(ctx, query, args...)
	r.observe(ctx, query, start, err)
	if err != nil {
		return false, fmt.Errorf("failed to %s user %d: %w", op, id, database.WrapConstraint(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	r.logger.Debug("User "+op, "id", id, "rows", affected, "duration", utils.Since(start))
	return affected > 0, nil
}

// ListUsers returns one page of users ordered by id unless the request says
// otherwise.
func (r *UserRepository) ListUsers(ctx context.Context, req *types.PageRequest) (*types.Pagination[models.User], error) {
	if r.pages == nil {
		return nil, database.ErrNotConnected
	}
	if req == nil {
		req = types.NewPageRequest(1, types.DefaultPageSize, nil)
	}
	if len(req.GetOrders()) == 0 {
		req = types.NewPageRequest(req.GetPage(), req.GetPageSize(), req.GetFilter(), "id ASC")
	}
	return r.pages.Page(ctx, req)
}

// CountUsers returns the number of rows in the users table.
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	if r.pages == nil {
		return 0, database.ErrNotConnected
	}
	return r.pages.Count(ctx, nil)
}

func requireFields(username, email, plaintext string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: %s", ErrMissingField, "username")
	case email == "":
		return fmt.Errorf("%w: %s", ErrMissingField, "email")
	case plaintext == "":
		return fmt.Errorf("%w: %s", ErrMissingField, "password")
	}
	return nil
}
