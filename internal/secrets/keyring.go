// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/zalando/go-keyring"

	"github.com/strata-dev/strata/internal/logging"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// indexKey holds the JSON list of key names for a service, since the OS
// keyrings cannot enumerate entries.
const indexKey = ".strata-index"

// KeyringStore implements Store on the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkEntry(op, service, key string) error {
	switch {
	case service == "":
		return strataerr.Errorf(strataerr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	case key == "":
		return strataerr.Errorf(strataerr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	case key == indexKey:
		return strataerr.Errorf(strataerr.CodeSecretInvalidInput, "secret %s: key %q is reserved", op, key)
	}
	return nil
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkEntry("set", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkEntry("get", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", strataerr.Errorf(strataerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", strataerr.Wrapf(err, strataerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkEntry("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return strataerr.Errorf(strataerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, strataerr.New(strataerr.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	return s.loadIndex(service)
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *KeyringStore) updateIndex(service string, update func([]string) []string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	keys = update(keys)

	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			logging.Component("secrets").Debug("removing empty key index", "service", service, "error", err)
		}
		return nil
	}

	slices.Sort(keys)
	data, err := json.Marshal(keys)
	if err != nil {
		return strataerr.Wrapf(err, strataerr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return strataerr.Wrapf(err, strataerr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}
