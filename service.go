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

package userstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tomoncle/userstore/database"
	"github.com/tomoncle/userstore/models"
	"github.com/tomoncle/userstore/repository"
	"github.com/tomoncle/userstore/security"
	"github.com/tomoncle/userstore/types"
	"github.com/tomoncle/userstore/utils"
)

func init() {
	database.RegisterModel(database.NewModelAdapter((*models.User)(nil), models.DefaultUserPriority))
}

// UserService is the set of user operations the store offers.
type UserService interface {
	// AddUser stores a new user and reports whether a row was written.
	AddUser(ctx context.Context, username, email, password string) (bool, error)

	// CreateUser stores a new user and returns it with its assigned id.
	CreateUser(ctx context.Context, username, email, password string) (*models.User, error)

	// ReadUser returns the user or nil when the id does not exist.
	ReadUser(ctx context.Context, id int64) (*models.User, error)

	// UpdateUser overwrites every field of an existing user.
	UpdateUser(ctx context.Context, id int64, username, email, password string) (bool, error)

	// PatchUser changes only the fields set in patch.
	PatchUser(ctx context.Context, id int64, patch models.UserPatch) (bool, error)

	// DeleteUser removes a user; absent ids are ignored.
	DeleteUser(ctx context.Context, id int64) error

	// ListUsers returns a page of users.
	ListUsers(ctx context.Context, page *types.PageRequest) (*types.Pagination[models.User], error)

	// CountUsers returns the number of stored users.
	CountUsers(ctx context.Context) (int, error)
}

// Store wires configuration, connection, hasher and repository together.
type Store struct {
	manager database.AbstractDatabaseManager
	users   *repository.UserRepository
	hasher  security.PasswordHasher
}

var _ UserService = (*Store)(nil)

// Open connects with cfg and returns a ready Store. A nil cfg means
// DefaultConfig. Connection failures are returned as *database.ConnectionError.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Log.Level != "" {
		utils.ConfigureLogLevel(cfg.Log.Level)
	}
	if cfg.Log.Format != "" {
		utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	}

	hasher, err := security.NewHasher(cfg.Security)
	if err != nil {
		return nil, err
	}

	m, err := database.Bootstrap(ctx, &cfg.Database, nil)
	if err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(m.GetSQLX(), m.GetDB(), hasher)
	users.SetQueryObserver(m.QueryObserver())

	return &Store{
		manager: m,
		users:   users,
		hasher:  hasher,
	}, nil
}

// Manager exposes the underlying connection manager.
func (s *Store) Manager() database.AbstractDatabaseManager {
	return s.manager
}

// Users returns the repository bound to the pool.
func (s *Store) Users() *repository.UserRepository {
	return s.users
}

// Hasher returns the password hasher used for stored users.
func (s *Store) Hasher() security.PasswordHasher {
	return s.hasher
}

// WithSession runs fn with a repository bound to one dedicated connection,
// released when fn returns.
func (s *Store) WithSession(ctx context.Context, fn func(users *repository.UserRepository) error) error {
	return s.Manager().WithConn(ctx, func(conn *sqlx.Conn) error {
		return fn(s.users.Session(conn))
	})
}

func (s *Store) AddUser(ctx context.Context, username, email, password string) (bool, error) {
	return s.users.AddUser(ctx, username, email, password)
}

func (s *Store) CreateUser(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.users.CreateUser(ctx, username, email, password)
}

func (s *Store) ReadUser(ctx context.Context, id int64) (*models.User, error) {
	return s.users.ReadUser(ctx, id)
}

func (s *Store) UpdateUser(ctx context.Context, id int64, username, email, password string) (bool, error) {
	return s.users.UpdateUser(ctx, id, username, email, password)
}

func (s *Store) PatchUser(ctx context.Context, id int64, patch models.UserPatch) (bool, error) {
	return s.users.PatchUser(ctx, id, patch)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.users.DeleteUser(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context, page *types.PageRequest) (*types.Pagination[models.User], error) {
	return s.users.ListUsers(ctx, page)
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.users.CountUsers(ctx)
}

// Health pings the database and reports pool usage.
func (s *Store) Health(ctx context.Context) *database.HealthStatus {
	return s.manager.HealthCheck(ctx)
}

func (s *Store) Stats() *database.DBStats {
	return s.manager.GetStats()
}

// Close releases the pool.
func (s *Store) Close() error {
	if err := s.manager.Disconnect(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
