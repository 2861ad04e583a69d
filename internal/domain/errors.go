package domain

import "errors"

// ErrNoDirectoryGrant is returned by every local save path while no
// directory has been selected.
var ErrNoDirectoryGrant = errors.New("no directory selected")
