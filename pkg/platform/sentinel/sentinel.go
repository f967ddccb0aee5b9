package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and publishers return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: no entry for the key (cache miss, unknown process)
//   - ErrUnavailable: backend temporarily unreachable (cache down, breaker open)
//   - ErrClosed: component already shut down
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
