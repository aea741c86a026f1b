// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	_ "github.com/revdoc/janitor/pkg/kb/tasks"
)
