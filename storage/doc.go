// Package storage provides content-addressed persistence for encrypted
// objects. Objects are keyed by the SHA-256 of their canonical encoding, so
// a fetched object can always be checked against the id it was requested
// under.
package storage
