package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEntityExists = errors.New("entity already exists")

	// ErrConfiguration covers unknown domains, missing parameters and
	// overlapping fold lists. It is raised before any training work starts.
	ErrConfiguration   = errors.New("configuration error")
	ErrUnknownDomain   = errors.New("unknown domain")
	ErrDataUnavailable = errors.New("data unavailable")
	ErrCheckpointIO    = errors.New("checkpoint io error")
	ErrRemoteStorage   = errors.New("remote storage error")
	ErrRemoteFetch     = errors.New("remote fetch error")
	ErrEngineDone      = errors.New("engine run already finished")
)
