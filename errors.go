package servhub

import "errors"

var (
	ErrMonikerInvalid = errors.New("moniker: names must only contain alphanum, dashes, dots, underscores and be less than 128 chars")
	ErrVersionInvalid = errors.New("moniker: versions must be numeric major.minor[.build[.revision]]")

	ErrAccessDenied          = errors.New("registry: caller audience may not resolve this service")
	ErrServiceNotFound       = errors.New("registry: no provider for this service")
	ErrDuplicateRegistration = errors.New("registry: name already registered with a conflicting registration")

	ErrUnsupportedCombination = errors.New("descriptor: formatter is not compatible with framing")

	ErrChannelNotFound = errors.New("connector: channel does not exist yet")
	ErrConnectTimeout  = errors.New("connector: timed out binding channel")
	ErrChannelClosed   = errors.New("connector: channel is closed")

	ErrBrokerClosed = errors.New("broker: shutting down")
	ErrHostClosed   = errors.New("host: closed")
)
