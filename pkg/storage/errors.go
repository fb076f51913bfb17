package storage

import "errors"

var (
	ErrNotFound   = errors.New("blob not found")
	ErrEmptyKey   = errors.New("blob name must not be empty")
	ErrInvalidKey = errors.New("blob name must be relative without parent segments")
)
