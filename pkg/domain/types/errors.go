package types

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidOption = goerr.New("invalid option")

	// Bad request
	ErrUnauthorized   = goerr.New("unauthorized")
	ErrInvalidRequest = goerr.New("invalid request")

	// Pipeline errors
	ErrConnection = goerr.New("connection error")
	ErrExtraction = goerr.New("extraction error")
	ErrTransform  = goerr.New("transform error")
	ErrIngestion  = goerr.New("ingestion error")
	ErrRun        = goerr.New("run error")

	// Delivery classification of catalog service responses
	ErrTransientDelivery = goerr.New("transient delivery failure")
	ErrPermanentDelivery = goerr.New("permanent delivery failure")

	// Warehouse does not provide the requested catalog surface
	ErrUnsupported = goerr.New("unsupported by warehouse")

	// Runtime error
	ErrNoPolicyResult = goerr.New("no policy result")
	ErrStateNotFound  = goerr.New("state not found")
	ErrRunInProgress  = goerr.New("another run is in progress")

	// Assertion error
	ErrAssertion = goerr.New("assertion error")
)
