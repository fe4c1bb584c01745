package binding

import "errors"

// Sentinel errors for the binding layer.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation is returned when an ingest payload is malformed or
	// incomplete. Nothing is mutated when this is returned.
	ErrValidation = errors.New("binding: invalid payload")

	// ErrMissingParameter is returned when a parametrized property read
	// is invoked without its required parameter.
	ErrMissingParameter = errors.New("binding: missing required parameter")

	// ErrFetch is returned when the external sensor endpoint is
	// unreachable or answers with a non-success status. The cache is
	// left untouched.
	ErrFetch = errors.New("binding: sensor fetch failed")

	// ErrStore is returned by the persistence collaborator. Store
	// failures are logged and never undo a cache update that already
	// happened.
	ErrStore = errors.New("binding: store operation failed")

	// ErrActuation is returned by the actuator collaborator. It never
	// reaches an exposition caller; toggle operations absorb it into a
	// structured result.
	ErrActuation = errors.New("binding: actuation request failed")

	// ErrVerdict is returned when the vision collaborator fails. The
	// pipeline aborts with no alert and no actuation.
	ErrVerdict = errors.New("binding: verdict request failed")
)
