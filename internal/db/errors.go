package db

import "errors"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when creating a document whose ID is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrSlugTaken is returned when another restaurant already uses the slug.
	ErrSlugTaken = errors.New("slug already taken")
)
