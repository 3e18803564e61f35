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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

// QueryHook prints executed queries as one coloured line each. Only
// failed queries are printed unless Verbose is set; sql.ErrNoRows is not a
// failure.
type QueryHook struct {
	Verbose bool
	Writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a verbose QueryHook writing to w.
func NewQueryHook(w io.Writer) *QueryHook {
	return &QueryHook{Verbose: true, Writer: w}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	h.print(event.Operation(), event.Query, event.StartTime, event.Err)
}

func (h *QueryHook) ObserveQuery(_ context.Context, query string, start time.Time, err error) {
	h.print(queryOperation(query), query, start, err)
}

func (h *QueryHook) print(operation, query string, start time.Time, err error) {
	failed := err != nil && !errors.Is(err, sql.ErrNoRows)
	if !failed && !h.Verbose {
		return
	}

	line := fmt.Sprintf("%s %s %10s  %s",
		start.Format("2006-01-02 15:04:05.000"),
		color.CyanString("[SQL]"),
		time.Since(start).Round(time.Microsecond),
		operationColor(operation).Sprint(query),
	)
	if failed {
		line += "  " + color.New(color.FgWhite, color.BgRed).Sprintf(" %v ", err)
	}
	_, _ = fmt.Fprintln(h.Writer, line)
}

func operationColor(operation string) *color.Color {
	switch operation {
	case "SELECT":
		return color.New(color.FgGreen)
	case "INSERT":
		return color.New(color.FgBlue)
	case "UPDATE":
		return color.New(color.FgYellow)
	case "DELETE":
		return color.New(color.FgMagenta)
	}
	return color.New(color.FgRed)
}

// slowQueryHook warns through logger when a successful query runs longer than
// threshold.
type slowQueryHook struct {
	threshold time.Duration
	logger    Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	h.check(event.Operation(), event.Query, event.StartTime, event.Err)
}

func (h *slowQueryHook) ObserveQuery(_ context.Context, query string, start time.Time, err error) {
	h.check(queryOperation(query), query, start, err)
}

func (h *slowQueryHook) check(operation, query string, start time.Time, err error) {
	if (err != nil && !errors.Is(err, sql.ErrNoRows)) || h.logger == nil {
		return
	}
	if elapsed := time.Since(start); elapsed > h.threshold {
		h.logger.Warn("Database slow query detected",
			"operation", operation,
			"duration", elapsed.Round(time.Microsecond),
			"threshold", h.threshold,
			"query", query,
		)
	}
}

// QueryObserver receives statements that run on the sqlx handle, so they
// reach the same query log and slow query warnings as Bun queries.
type QueryObserver interface {
	ObserveQuery(ctx context.Context, query string, start time.Time, err error)
}

var (
	_ QueryObserver = (*QueryHook)(nil)
	_ QueryObserver = (*slowQueryHook)(nil)
)

// QueryObservers passes each statement to every observer in order.
type QueryObservers []QueryObserver

func (o QueryObservers) ObserveQuery(ctx context.Context, query string, start time.Time, err error) {
	for _, obs := range o {
		obs.ObserveQuery(ctx, query, start, err)
	}
}

// queryOperation returns the leading keyword of query, upper-cased.
func queryOperation(query string) string {
	if f := strings.Fields(query); len(f) > 0 {
		return strings.ToUpper(f[0])
	}
	return ""
}
