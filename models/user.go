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

// Package models holds the persisted entities of the users store.
package models

import "github.com/uptrace/bun"

// Column names of the users table.
const (
	UsersTable          = "users"
	ColumnID            = "ID"
	ColumnUsername      = "Name_user"
	ColumnEmail         = "email"
	ColumnPasswordHash  = "Password_user"
	DefaultUserPriority = 10
)

// User is a row of the users table. Bun tags are lower case so the same model
// maps onto MySQL and SQLite (case-insensitive names) and PostgreSQL
// (unquoted names fold to lower case).
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64  `bun:"id,pk,autoincrement" db:"id" json:"id"`
	Username     string `bun:"name_user,notnull" db:"name_user" json:"username"`
	Email        string `bun:"email,notnull" db:"email" json:"email"`
	PasswordHash string `bun:"password_user,notnull" db:"password_user" json:"-"`
}

// Fields returns the row keyed by column name.
func (u *User) Fields() map[string]interface{} {
	return map[string]interface{}{
		ColumnID:           u.ID,
		ColumnUsername:     u.Username,
		ColumnEmail:        u.Email,
		ColumnPasswordHash: u.PasswordHash,
	}
}

// UserPatch lists the fields to change; nil fields are left untouched.
// Password is plaintext and is hashed before it is stored.
type UserPatch struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Username == nil && p.Email == nil && p.Password == nil
}
