package httpapi

import "errors"

// ErrBadRequest marks a malformed request body or missing required
// selection (SPEC_FULL.md section 7, 400).
var ErrBadRequest = errors.New("httpapi: bad request")
