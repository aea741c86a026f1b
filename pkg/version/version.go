// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package version provides the version of the janitor.
package version

// Version is the janitor version. It is set at build time via -ldflags.
var Version = "v0.0.0-unknown"
