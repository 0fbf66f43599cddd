// Package sentinel holds infrastructure facts that stores and rule sources
// report. Services translate them into domain errors; request validation
// uses pkg/domain-errors directly.
package sentinel

import "errors"

// ErrNotFound reports that a stored record or rule set document does not exist.
var ErrNotFound = errors.New("not found")
