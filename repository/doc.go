// Package repository provides a generic Bun repository for paged reads and the
// parameter-bound UserRepository built on sqlx.
package repository
