// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net"
	"net/url"

	vaultapi "github.com/hashicorp/vault/api"

	vaultclient "github.com/revdoc/janitor/pkg/clients/vault"
	"github.com/revdoc/janitor/pkg/core/config"
)

// defaultVaultMountPath is the mount path of the KV-v2 secrets engine, unless
// an explicit mount path has been configured.
const defaultVaultMountPath = "secret"

// newVaultClient creates a new Vault API client from the given config.
func newVaultClient(conf *config.Config) (*vaultapi.Client, error) {
	apiConfig := vaultapi.DefaultConfig()
	if conf.Vault.Endpoint != "" {
		apiConfig.Address = conf.Vault.Endpoint
	}

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, err
	}

	if conf.Vault.Token != "" {
		client.SetToken(conf.Vault.Token)
	}

	return client, nil
}

// getDatabaseDSN returns the DSN of the vector store. An explicitly
// configured DSN takes precedence; otherwise the database credentials are
// read from the configured Vault secret.
func getDatabaseDSN(ctx context.Context, conf *config.Config) (string, error) {
	if conf.Database.DSN != "" {
		return conf.Database.DSN, nil
	}

	if err := validateDBConfig(conf); err != nil {
		return "", err
	}

	client, err := newVaultClient(conf)
	if err != nil {
		return "", fmt.Errorf("vault: cannot configure client: %w", err)
	}
	vaultclient.SetClient(client)

	mountPath := conf.Vault.MountPath
	if mountPath == "" {
		mountPath = defaultVaultMountPath
	}

	secret, err := client.KVv2(mountPath).Get(ctx, conf.Database.CredentialsSecret)
	if err != nil {
		return "", fmt.Errorf("vault: cannot read secret %s: %w", conf.Database.CredentialsSecret, err)
	}

	host, err := secretString(secret.Data, "host")
	if err != nil {
		return "", err
	}

	port, err := secretString(secret.Data, "port")
	if err != nil {
		return "", err
	}

	user, err := secretString(secret.Data, "user")
	if err != nil {
		return "", err
	}

	password, err := secretString(secret.Data, "password")
	if err != nil {
		return "", err
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(host, port),
		Path:   conf.Database.Name,
	}

	return dsn.String(), nil
}

// secretString returns the value for the given key from the secret data.
func secretString(data map[string]any, key string) (string, error) {
	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("vault: secret does not provide %q", key)
	}

	return fmt.Sprintf("%v", value), nil
}
