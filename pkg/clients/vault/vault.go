// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package vault provides the Vault API client used by workers during runtime.
package vault

import (
	vaultapi "github.com/hashicorp/vault/api"
)

// Client is the [vaultapi.Client] used by workers during runtime to read
// secrets such as the vector store database credentials.
var Client *vaultapi.Client

// SetClient shall be invoked from cli commands to set the Vault client for
// the workers.
func SetClient(c *vaultapi.Client) {
	Client = c
}
