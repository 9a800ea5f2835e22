package db

import "errors"

// ErrNotFound is the sentinel for lookups that matched no row. Repository
// saves branch on it to decide between inserting a fresh entity and
// merging into the stored one.
var ErrNotFound = errors.New("not found")
