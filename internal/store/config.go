// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package store

import (
	"fmt"
	"net/url"
)

// StorageConfig controls which backend the store factory uses and how it
// connects.
type StorageConfig struct {
	Backend string // "sqlite" (default) or "postgres".

	// Path is the SQLite database file.
	Path string

	// PostgreSQL connection parameters.
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// PostgresDSN renders the connection URL understood by lib/pq.
func (c *StorageConfig) PostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
