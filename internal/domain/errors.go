package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TransportError represents a stream-transport failure that may be retriable
type TransportError struct {
	Op        string // Operation that failed (e.g., "dial", "listen-key", "stop")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) IsRetriable() bool {
	return e.Retriable
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new retriable transport error
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: true}
}

// NewFatalTransportError creates a non-retriable transport error
func NewFatalTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: false}
}

// MalformedMessageError reports a stream payload with a missing or unparsable
// required field. It is never retriable; retrying cannot fix a bad payload,
// and skipping it silently would corrupt the cache.
type MalformedMessageError struct {
	Stream string // "ticker" or "user"
	Field  string // offending field, e.g. "c", "f", "Z"
	Err    error
}

func (e *MalformedMessageError) Error() string {
	return "malformed " + e.Stream + " stream message [" + e.Field + "]: " + e.Err.Error()
}

func (e *MalformedMessageError) IsRetriable() bool {
	return false
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

var (
	// ErrStreamNotEstablished is returned when a subscription could not be
	// started after the bounded retry loop was exhausted.
	ErrStreamNotEstablished = errors.New("stream not established")

	// ErrUnknownAsset is returned when a balanceUpdate names an asset that is
	// not in the cache. Surfaced rather than skipped so that protocol
	// divergence is visible.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrDuplicateStream is returned when a transport stream path is started twice.
	ErrDuplicateStream = errors.New("stream already started")

	// ErrUnknownStream is returned when stopping a handle the transport does not own.
	ErrUnknownStream = errors.New("unknown stream handle")

	// ErrEventLoopStopped is returned when starting a stream on a transport
	// whose event loop is not running.
	ErrEventLoopStopped = errors.New("transport event loop not running")
)
