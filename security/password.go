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

// Package security hashes user passwords before they reach the store.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HasherBcrypt = "bcrypt"
	HasherArgon2 = "argon2"

	DefaultBcryptCost = 12
)

var ErrInvalidHash = errors.New("invalid password hash")

// Limits on parameters read back from a stored argon2id hash.
const (
	maxArgon2Memory = 1024 * 1024 // KiB
	maxArgon2Time   = 16
)

// Config selects the password hashing scheme.
type Config struct {
	Hasher     string `yaml:"hasher" env:"PASSWORD_HASHER"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

func DefaultConfig() Config {
	return Config{Hasher: HasherBcrypt, BcryptCost: DefaultBcryptCost}
}

// PasswordHasher turns a plaintext password into a one-way hash and checks a
// plaintext candidate against a stored hash.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// NewHasher returns the hasher named by cfg.Hasher. An empty name means bcrypt.
func NewHasher(cfg Config) (PasswordHasher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Hasher)) {
	case "", HasherBcrypt:
		return NewBcryptHasher(cfg.BcryptCost), nil
	case HasherArgon2, "argon2id":
		return NewArgon2Hasher(), nil
	default:
		return nil, fmt.Errorf("unsupported password hasher: %q", cfg.Hasher)
	}
}

type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a bcrypt hasher; a cost outside bcrypt's range
// falls back to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Argon2Hasher produces argon2id hashes in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type Argon2Hasher struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{Memory: 64 * 1024, Time: 1, Threads: 4, SaltLen: 16, KeyLen: 32}
}

func (h *Argon2Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, h.Time, h.Memory, h.Threads, h.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Verify(hash, plain string) bool {
	p, salt, key, err := decodeArgon2(hash)
	if err != nil {
		return false
	}
	other := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1
}

func decodeArgon2(hash string) (*Argon2Hasher, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, nil, ErrInvalidHash
	}
	p := &Argon2Hasher{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return nil, nil, nil, ErrInvalidHash
	}
	if p.Time == 0 || p.Threads == 0 || p.Memory == 0 || p.Memory > maxArgon2Memory || p.Time > maxArgon2Time {
		return nil, nil, nil, ErrInvalidHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, nil, ErrInvalidHash
	}
	return p, salt, key, nil
}
