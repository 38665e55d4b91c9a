package cli

import "errors"

// errDenied makes `can` exit non-zero so scripts can branch on the result.
var errDenied = errors.New("permission denied by policy")
