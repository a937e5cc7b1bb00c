package review

import "errors"

var ErrCandidateNotFound = errors.New("candidate not found")
