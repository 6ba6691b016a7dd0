// Package errors defines the error taxonomy for the KEMTLS handshake engine.
// These errors provide enough detail for callers and tests to distinguish
// failure kinds without leaking sensitive information in error messages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for codec-level structural failures
var (
	// ErrMalformedMessage indicates a wire message is structurally invalid
	ErrMalformedMessage = errors.New("protocol: malformed message")

	// ErrMessageTooLarge indicates a declared length exceeds the maximum message size
	ErrMessageTooLarge = errors.New("protocol: message too large")
)

// Sentinel errors for handshake and record processing
var (
	// ErrProtocolViolation indicates a message arrived out of the expected sequence
	ErrProtocolViolation = errors.New("handshake: protocol violation")

	// ErrAuthenticationFailed indicates a signature or MAC check failed
	ErrAuthenticationFailed = errors.New("handshake: authentication failed")

	// ErrCryptoFailure indicates a primitive-level failure such as a
	// malformed decapsulation input or a derived secret of unexpected length
	ErrCryptoFailure = errors.New("crypto: operation failed")

	// ErrHandshakeFailed indicates the session is in the terminal failed state
	ErrHandshakeFailed = errors.New("handshake: failed")
)

// Sentinel errors for key and certificate material
var (
	// ErrInvalidKeySize indicates key material has an incorrect size
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidPublicKey indicates a public key could not be parsed
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidCiphertext indicates a KEM ciphertext is malformed
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

	// ErrInvalidCertificate indicates a certificate is structurally invalid
	ErrInvalidCertificate = errors.New("cert: invalid certificate")

	// ErrNonceExhausted indicates the record sequence space is exhausted
	ErrNonceExhausted = errors.New("record: sequence space exhausted")
)

// Sentinel errors for the transport binding
var (
	// ErrTimeout indicates a read or write deadline expired
	ErrTimeout = errors.New("transport: operation timed out")

	// ErrConnectionClosed indicates the peer closed the connection
	ErrConnectionClosed = errors.New("transport: connection closed")

	// ErrChannelClosed indicates the secure channel has been closed locally
	ErrChannelClosed = errors.New("transport: channel closed")
)

// Sentinel errors for the channel pool
var (
	// ErrPoolClosed indicates the pool has been closed
	ErrPoolClosed = errors.New("pool: pool is closed")

	// ErrPoolTimeout indicates an acquire operation timed out
	ErrPoolTimeout = errors.New("pool: acquire timed out")
)

// CryptoError wraps a cryptographic error with the failing operation.
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError.
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ProtocolError wraps a protocol error with the phase it occurred in.
type ProtocolError struct {
	Phase string // Protocol phase (e.g., "handshake", "record")
	Err   error  // Underlying error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol %s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
