// Package rpcerrors defines the error kinds of spec §7 as sentinel errors,
// in the shape of docker-compose's errdefs package: package-level
// errors.New values plus Is* classifiers built on errors.Is, so that a
// wrapped/contextualized error (carrying a remote or handler message)
// still classifies correctly.
package rpcerrors

import "github.com/pkg/errors"

var (
	// ErrNoSuchRoute is raised outbound when the local catalog has no such
	// route, or inbound when the peer called an unknown route.
	ErrNoSuchRoute = errors.New("no such route")
	// ErrValidation is raised when an in/out validator rejects a value.
	ErrValidation = errors.New("validation error")
	// ErrWrongSide is raised when a frame's Side names a role other than the
	// receiver's own, i.e. asks the receiver to run the other side's routes.
	ErrWrongSide = errors.New("wrong side")
	// ErrHandler wraps an error returned by a local handler, reported to the
	// peer as an error frame.
	ErrHandler = errors.New("handler error")
	// ErrRemote wraps a failure reported by the remote peer.
	ErrRemote = errors.New("remote error")
	// ErrConnectionClosed is surfaced to every outstanding call when the
	// connection transitions to closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrBackpressureDropped is surfaced to an InboundStream consumer when a
	// bounded chunk buffer overflowed and the chunk was dropped.
	ErrBackpressureDropped = errors.New("chunk dropped under backpressure")
)

// IsNoSuchRoute reports whether err (or its cause) is ErrNoSuchRoute.
func IsNoSuchRoute(err error) bool { return errors.Is(err, ErrNoSuchRoute) }

// IsValidation reports whether err (or its cause) is ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsWrongSide reports whether err (or its cause) is ErrWrongSide.
func IsWrongSide(err error) bool { return errors.Is(err, ErrWrongSide) }

// IsHandler reports whether err (or its cause) is ErrHandler.
func IsHandler(err error) bool { return errors.Is(err, ErrHandler) }

// IsRemote reports whether err (or its cause) is ErrRemote.
func IsRemote(err error) bool { return errors.Is(err, ErrRemote) }

// IsConnectionClosed reports whether err (or its cause) is ErrConnectionClosed.
func IsConnectionClosed(err error) bool { return errors.Is(err, ErrConnectionClosed) }

// IsBackpressureDropped reports whether err (or its cause) is ErrBackpressureDropped.
func IsBackpressureDropped(err error) bool { return errors.Is(err, ErrBackpressureDropped) }

// kindError carries a wire-level message whose Error() string is exactly
// that message (so it round-trips verbatim through an error frame's
// "error" field, per spec §6.1/§8 scenario 4), while still classifying as
// its Kind sentinel under errors.Is.
type kindError struct {
	kind    error
	message string
}

func (e *kindError) Error() string { return e.message }
func (e *kindError) Unwrap() error { return e.kind }

// Remote wraps message (as reported by the peer) so it classifies as
// ErrRemote while preserving message as the exact Error() text.
func Remote(message string) error { return &kindError{kind: ErrRemote, message: message} }

// Handler wraps message (from a local handler's error) so it
// classifies as ErrHandler while preserving message as the exact Error()
// text.
func Handler(message string) error { return &kindError{kind: ErrHandler, message: message} }

// Validation wraps message (from a failing validator) so it classifies as
// ErrValidation while preserving message as the exact Error() text.
func Validation(message string) error { return &kindError{kind: ErrValidation, message: message} }

// NoSuchRoute wraps a route's fully-qualified name so it classifies as
// ErrNoSuchRoute; its Error() text is "no such route: " followed by the name.
func NoSuchRoute(name string) error {
	return &kindError{kind: ErrNoSuchRoute, message: "no such route: " + name}
}
