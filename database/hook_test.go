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
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/userstore/utils"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) SetLevel(LogLevel) {}
func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{}) {}
func (l *recordingLogger) Error(string, ...interface{}) {}

func (l *recordingLogger) Warn(msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprint(append([]interface{}{msg}, kv...)...))
}

func TestQueryHook_WritesQueries(t *testing.T) {
	ctx := context.Background()
	m, err := Open(ctx, sqliteConfig())
	require.NoError(t, err)
	defer func() { _ = m.Disconnect() }()

	var buf bytes.Buffer
	m.GetDB().AddQueryHook(NewQueryHook(&buf))

	var n int
	require.NoError(t, m.GetDB().NewSelect().ColumnExpr("1 + 1").Scan(ctx, &n))
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "[SQL]")
	assert.Contains(t, buf.String(), "SELECT 1 + 1")

	_, err = m.GetDB().NewSelect().TableExpr("missing_table").Exec(ctx)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "missing_table")
}

func TestQueryHook_QuietSkipsSuccess(t *testing.T) {
	ctx := context.Background()
	m, err := Open(ctx, sqliteConfig())
	require.NoError(t, err)
	defer func() { _ = m.Disconnect() }()

	var buf bytes.Buffer
	m.GetDB().AddQueryHook(&QueryHook{Writer: &buf})

	var n int
	require.NoError(t, m.GetDB().NewSelect().ColumnExpr("1").Scan(ctx, &n))
	assert.Empty(t, buf.String())
}

func TestSlowQueryHook(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig()
	cfg.SlowQueryTime = time.Nanosecond

	rec := &recordingLogger{}
	m := NewDatabaseManager(cfg)
	m.SetLogger(rec)
	require.NoError(t, m.Connect(ctx))
	defer func() { _ = m.Disconnect() }()

	var n int
	require.NoError(t, m.GetDB().NewSelect().ColumnExpr("1").Scan(ctx, &n))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.warns)
	assert.Contains(t, rec.warns[0], "Database slow query detected")
}

func TestQueryObservers_ObserveQuery(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	rec := &recordingLogger{}
	obs := QueryObservers{
		&QueryHook{Writer: &buf},
		&slowQueryHook{threshold: time.Nanosecond, logger: rec},
	}
	start := time.Now().Add(-time.Millisecond)

	obs.ObserveQuery(ctx, "update users SET email = ? WHERE ID = ?", start, nil)
	assert.Empty(t, buf.String())
	rec.mu.Lock()
	require.Len(t, rec.warns, 1)
	assert.Contains(t, rec.warns[0], "UPDATE")
	rec.mu.Unlock()

	obs.ObserveQuery(ctx, "SELECT 1 FROM users WHERE ID = ?", start, sql.ErrNoRows)
	assert.Empty(t, buf.String())

	obs.ObserveQuery(ctx, "DELETE FROM missing_table", start, errors.New("no such table: missing_table"))
	assert.Contains(t, buf.String(), "[SQL]")
	assert.Contains(t, buf.String(), "DELETE FROM missing_table")
	assert.Contains(t, buf.String(), "no such table")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.warns, 2)
}

func TestManager_QueryObserver(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig()
	m := NewDatabaseManager(cfg)
	assert.Empty(t, m.QueryObserver())

	cfg.EnableQueryLog = false
	cfg.SlowQueryTime = time.Nanosecond
	rec := &recordingLogger{}
	m.SetLogger(rec)
	require.NoError(t, m.Connect(ctx))
	defer func() { _ = m.Disconnect() }()

	obs, ok := m.QueryObserver().(QueryObservers)
	require.True(t, ok)
	require.Len(t, obs, 1)
	assert.IsType(t, &slowQueryHook{}, obs[0])
}

func TestDefaultLogger_NoCallerFrame(t *testing.T) {
	var buf bytes.Buffer
	utils.SetConsoleOutput(&buf)
	defer utils.SetConsoleOutput(nil)

	NewDefaultLogger("DBCALLER").Warn("pool exhausted", "open", 3)
	assert.Contains(t, buf.String(), "pool exhausted")
	assert.NotContains(t, buf.String(), "logger.go:")
}

func TestToFields(t *testing.T) {
	f := toFields([]interface{}{"a", 1, 2, "skipped", "b", errors.New("x"), "dangling"})
	assert.Equal(t, 1, f["a"])
	assert.EqualError(t, f["b"].(error), "x")
	assert.NotContains(t, f, "dangling")
	assert.Len(t, f, 2)
}

func TestOpenMySQL_HostWithPort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := OpenMySQL(ctx, "127.0.0.1:1", "root", "", "users")
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "127.0.0.1:1", ce.Host)
}
