/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides version information.
package version

// Version is the current version of Tunabrain.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/tunabrain/internal/version.Version=X.Y.Z
var Version = "0.3.0"
