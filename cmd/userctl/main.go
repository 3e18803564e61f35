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

// Command userctl manages rows of the users table.
//
// Usage:
//
//	userctl [-config file] add <username> <email> <password>
//	userctl [-config file] read <id>
//	userctl [-config file] update <id> <username> <email> <password>
//	userctl [-config file] patch <id> [-username s] [-email s] [-password s]
//	userctl [-config file] delete <id>
//	userctl [-config file] list [-page n] [-size n]
//
// Settings not given in the config file come from DB_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/tomoncle/userstore"
	"github.com/tomoncle/userstore/models"
	"github.com/tomoncle/userstore/types"
)

const (
	exitOK = iota
	exitError
	exitUsage
	exitNotFound
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("userctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "userctl: missing command (add, read, update, patch, delete, list)")
		return exitUsage
	}

	cfg, err := userstore.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "userctl:", err)
		return exitError
	}
	store, err := userstore.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, "userctl:", err)
		return exitError
	}
	defer func() { _ = store.Close() }()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	out, err := dispatch(ctx, store, cmd, rest)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "userctl %s: %v\n", cmd, err)
		return exitUsage
	case err != nil:
		fmt.Fprintf(stderr, "userctl %s: %v\n", cmd, err)
		return exitError
	case out == nil:
		fmt.Fprintln(stderr, "userctl: user not found")
		return exitNotFound
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(stderr, "userctl:", err)
		return exitError
	}
	return exitOK
}

type result struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

// dispatch runs one command. A nil value with a nil error means the user
// does not exist.
func dispatch(ctx context.Context, svc userstore.UserService, cmd string, args []string) (interface{}, error) {
	switch cmd {
	case "add":
		if len(args) != 3 {
			return nil, fmt.Errorf("%w: add <username> <email> <password>", errUsage)
		}
		return svc.CreateUser(ctx, args[0], args[1], args[2])

	case "read":
		id, err := parseID(args, 1)
		if err != nil {
			return nil, err
		}
		u, err := svc.ReadUser(ctx, id)
		if err != nil || u == nil {
			return nil, err
		}
		return u, nil

	case "update":
		id, err := parseID(args, 4)
		if err != nil {
			return nil, err
		}
		ok, err := svc.UpdateUser(ctx, id, args[1], args[2], args[3])
		if err != nil || !ok {
			return nil, err
		}
		return result{OK: ok, ID: id}, nil

	case "patch":
		if len(args) < 1 {
			return nil, fmt.Errorf("%w: patch <id> [-username s] [-email s] [-password s]", errUsage)
		}
		id, err := parseID(args[:1], 1)
		if err != nil {
			return nil, err
		}
		patch, err := parsePatch(args[1:])
		if err != nil {
			return nil, err
		}
		ok, err := svc.PatchUser(ctx, id, patch)
		if err != nil || !ok {
			return nil, err
		}
		return result{OK: ok, ID: id}, nil

	case "delete":
		id, err := parseID(args, 1)
		if err != nil {
			return nil, err
		}
		if err := svc.DeleteUser(ctx, id); err != nil {
			return nil, err
		}
		return result{OK: true, ID: id}, nil

	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		page := fs.Int("page", 1, "page number")
		size := fs.Int("size", types.DefaultPageSize, "page size")
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		return svc.ListUsers(ctx, types.NewPageRequest(*page, *size, nil))
	}
	return nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func parseID(args []string, want int) (int64, error) {
	if len(args) != want {
		return 0, fmt.Errorf("%w: expected %d argument(s), got %d", errUsage, want, len(args))
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errUsage, args[0])
	}
	return id, nil
}

func parsePatch(args []string) (models.UserPatch, error) {
	var patch models.UserPatch
	fs := flag.NewFlagSet("patch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Func("username", "new username", func(s string) error { patch.Username = &s; return nil })
	fs.Func("email", "new email", func(s string) error { patch.Email = &s; return nil })
	fs.Func("password", "new password", func(s string) error { patch.Password = &s; return nil })
	if err := fs.Parse(args); err != nil {
		return patch, fmt.Errorf("%w: %v", errUsage, err)
	}
	return patch, nil
}
