package sender

import "fmt"

// TransientSendError wraps a would-block error from a socket send: the
// packet is dropped for this iteration and recovered, if needed, via a
// later NACK (§7).
type TransientSendError struct{ Err error }

func (e *TransientSendError) Error() string {
	return fmt.Sprintf("sender: transient send error: %v", e.Err)
}
func (e *TransientSendError) Unwrap() error { return e.Err }

// FatalSocketError wraps any socket error other than would-block. It
// terminates the session: the worker sets the shared stop flag so the
// producer unwinds too (§7).
type FatalSocketError struct{ Err error }

func (e *FatalSocketError) Error() string {
	return fmt.Sprintf("sender: fatal socket error: %v", e.Err)
}
func (e *FatalSocketError) Unwrap() error { return e.Err }

// CaptureUnavailableError marks a capture iteration with no frame ready;
// the producer skips it silently.
type CaptureUnavailableError struct{}

func (e *CaptureUnavailableError) Error() string { return "sender: no capture available" }

// EncoderFailureError wraps a color/depth encoder error, or marks an
// encoder returning an empty buffer; the producer skips the frame.
type EncoderFailureError struct {
	Encoder string
	Err     error
}

func (e *EncoderFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sender: %s encoder failed: %v", e.Encoder, e.Err)
	}
	return fmt.Sprintf("sender: %s encoder returned an empty buffer", e.Encoder)
}
func (e *EncoderFailureError) Unwrap() error { return e.Err }

// ProtocolViolationError marks a datagram from the peer that is empty or
// too short for its report or NACK layout; datagrams of any other type
// are dropped silently without it. It is logged and the datagram is
// dropped; it never terminates a session,
// since a malformed or unexpected datagram from the network is
// expected background noise, not a reason to abort.
type ProtocolViolationError struct{ Err error }

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("sender: protocol violation: %v", e.Err)
}
func (e *ProtocolViolationError) Unwrap() error { return e.Err }

// SessionAbortError marks a failed bootstrap (bind or ping wait); it
// propagates to the CLI, which re-prompts for a port.
type SessionAbortError struct{ Err error }

func (e *SessionAbortError) Error() string {
	return fmt.Sprintf("sender: session aborted: %v", e.Err)
}
func (e *SessionAbortError) Unwrap() error { return e.Err }
