package repository

import "errors"

// ErrNotFound no row matched the lookup
var ErrNotFound = errors.New("record not found")
