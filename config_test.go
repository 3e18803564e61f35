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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
database:
  connection:
    type: postgres
    host: pg.internal
    port: 5433
    username: app
    password: secret
    dbname: users
    connect_timeout: 3s
  schema:
    auto_create_tables: true
security:
  hasher: argon2
log:
  level: debug
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "mysql", cfg.Database.Connection.Type)
	assert.Equal(t, "bcrypt", cfg.Security.Hasher)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	t.Setenv("DB_HOST", "override.internal")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("BCRYPT_COST", "11")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	conn := cfg.Database.Connection
	assert.Equal(t, "postgres", conn.Type)
	assert.Equal(t, "override.internal", conn.Host)
	assert.Equal(t, 5433, conn.Port)
	assert.Equal(t, "app", conn.Username)
	assert.Equal(t, "users", conn.DBName)
	assert.Equal(t, 3*time.Second, conn.ConnectTimeout)
	assert.Equal(t, 7, conn.MaxOpenConns)
	assert.Equal(t, 10, conn.MaxIdleConns, "untouched keys keep defaults")
	assert.True(t, cfg.Database.Schema.AutoCreateTables)
	assert.Equal(t, "argon2", cfg.Security.Hasher)
	assert.Equal(t, 11, cfg.Security.BcryptCost)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database: [1, 2"), 0o600))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	t.Setenv("DB_PORT", "not-a-number")
	_, err = LoadConfig("")
	assert.Error(t, err)
}
