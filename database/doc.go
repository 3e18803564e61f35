// Package database provides connection management for the users store:
// configuration types, a manager that opens MySQL, PostgreSQL or SQLite
// handles through Bun, typed connection and constraint errors, query hooks,
// health checks, scoped connection acquisition and table bootstrap.
package database
