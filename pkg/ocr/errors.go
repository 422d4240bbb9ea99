package ocr

import "errors"

// ErrInsufficientStats is returned when the recognized text does not contain
// the ten values a full stat screen carries.
var ErrInsufficientStats = errors.New("not enough stat values detected")
