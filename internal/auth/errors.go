// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUsernameTaken is returned when creating a player with a username
// that already exists.
var ErrUsernameTaken = errors.New("username taken")
