package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, sources and feed clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store or source
// - ErrUnavailable: remote service or resource could not be reached
// - ErrCorrupt: stored bytes do not decode into the expected schema
// - ErrInvalidState: entity in wrong state for requested operation
//
// For validation errors (bad input, malformed payloads), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrCorrupt      = errors.New("corrupt")
	ErrInvalidState = errors.New("invalid state")
)
