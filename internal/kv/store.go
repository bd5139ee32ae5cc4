// Package kv provides the string key-value backends behind the report cache.
package kv

import "errors"

// ErrQuotaExceeded is returned by a store that refuses a write for lack of space.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Store is a synchronous local key-value store.
// A miss is reported as ("", false, nil); errors mean the backend itself failed.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
}
