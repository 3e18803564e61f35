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
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotConnected is returned when a handle is used before Connect or after
// Disconnect.
var ErrNotConnected = errors.New("database not connected")

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoColumnErr
	NoTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	AccessDeniedErr
	UnknownDatabaseErr
)

func (e SQLError) String() string {
	switch e {
	case NoRowsErr:
		return "no rows"
	case NoColumnErr:
		return "no such column"
	case NoTableErr:
		return "no such table"
	case DuplicateKeyErr:
		return "duplicate key"
	case NotNullViolationErr:
		return "not null violation"
	case ForeignKeyViolationErr:
		return "foreign key violation"
	case CheckConstraintViolationErr:
		return "check constraint violation"
	case DataTruncatedErr:
		return "data truncated"
	case AccessDeniedErr:
		return "access denied"
	case UnknownDatabaseErr:
		return "unknown database"
	default:
		return "unknown"
	}
}

// IsConstraint reports whether the kind is an integrity constraint violation.
func (e SQLError) IsConstraint() bool {
	switch e {
	case DuplicateKeyErr, NotNullViolationErr, ForeignKeyViolationErr, CheckConstraintViolationErr:
		return true
	}
	return false
}

// ConnectionError reports that the store is unreachable or rejected the
// credentials. It replaces terminating the process on connect failure.
type ConnectionError struct {
	Type string
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("%s connection failed: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("%s connection to %s failed: %v", e.Type, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ConstraintError reports an integrity violation raised by the store, such as
// a duplicate key on insert.
type ConstraintError struct {
	Kind SQLError
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation (%s): %v", e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// WrapConstraint converts integrity violations into *ConstraintError and
// returns every other error unchanged.
func WrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return err
	}
	if ok, kind := IsSqlError(err); ok && kind.IsConstraint() {
		return &ConstraintError{Kind: kind, Err: err}
	}
	return err
}

// IsSqlError classifies driver errors from MySQL, PostgreSQL and SQLite.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1054:
			return true, NoColumnErr
		case 1146:
			return true, NoTableErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048, 1364:
			return true, NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return true, ForeignKeyViolationErr
		case 3819:
			return true, CheckConstraintViolationErr
		case 1265, 1406:
			return true, DataTruncatedErr
		case 1044, 1045:
			return true, AccessDeniedErr
		case 1049:
			return true, UnknownDatabaseErr
		default:
			return true, UnknownErr
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42703":
			return true, NoColumnErr
		case "42P01":
			return true, NoTableErr
		case "23505":
			return true, DuplicateKeyErr
		case "23502":
			return true, NotNullViolationErr
		case "23503":
			return true, ForeignKeyViolationErr
		case "23514":
			return true, CheckConstraintViolationErr
		case "22001":
			return true, DataTruncatedErr
		case "28000", "28P01":
			return true, AccessDeniedErr
		case "3D000":
			return true, UnknownDatabaseErr
		default:
			return true, UnknownErr
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true, DuplicateKeyErr
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return true, NotNullViolationErr
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return true, ForeignKeyViolationErr
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return true, CheckConstraintViolationErr
		}
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "no such column"), strings.Contains(s, "undefined column"):
		return true, NoColumnErr
	case strings.Contains(s, "no such table"), strings.Contains(s, "undefined table"):
		return true, NoTableErr
	case strings.Contains(s, "unique constraint failed"), strings.Contains(s, "duplicate key value"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not null constraint failed"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key constraint failed"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint failed"):
		return true, CheckConstraintViolationErr
	}
	return false, UnknownErr
}
