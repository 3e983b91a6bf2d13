package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity already exists
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrExpired: cached entry or credential past its lifetime
// - ErrUnavailable: service or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")
	ErrUnavailable  = errors.New("unavailable")
)
