package cli

import "errors"

// ErrParseIssuesFound signals a non-zero exit after the issues have
// already been printed, so main skips the error log.
var ErrParseIssuesFound = errors.New("parse issues found")
