package domain

import "errors"

// ErrConfiguration is returned before any job runs when settings are unusable.
var ErrConfiguration = errors.New("invalid configuration")

// ErrNoData indicates a source answered but holds nothing for the query.
var ErrNoData = errors.New("no data returned")

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")
