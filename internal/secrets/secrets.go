// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package secrets keeps credentials such as the database password out of
// the configuration file.
package secrets

// ServiceName is the keyring service strata stores its secrets under.
const ServiceName = "strata"

// DBPasswordKey is the conventional key for the database password, referenced
// from configuration as keyring://strata/db-password.
const DBPasswordKey = "db-password"

// Store provides secret storage operations.
type Store interface {
	// Set saves value under service and key, replacing any earlier value.
	Set(service, key, value string) error

	// Get returns the value for service and key. A missing entry fails with
	// CodeSecretNotFound.
	Get(service, key string) (string, error)

	// Delete removes the entry. A missing entry fails with CodeSecretNotFound.
	Delete(service, key string) error

	// List returns the key names stored under service in sorted order.
	List(service string) ([]string, error)
}
