package store

import "errors"

var (
	ErrNotFound     = errors.New("track not found")
	ErrEmptyCatalog = errors.New("track catalog is empty")
)
