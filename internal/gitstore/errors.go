package gitstore

import "errors"

// Errors raised by the Repo Store, per SPEC_FULL.md section 4.1.
var (
	ErrNoSuchRef  = errors.New("gitstore: no such ref")
	ErrNoSuchPath = errors.New("gitstore: no such path")
	ErrConflict   = errors.New("gitstore: ref advanced since base was read")
	ErrCorrupt    = errors.New("gitstore: corrupt object")
)
