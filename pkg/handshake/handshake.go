// Package handshake implements the KEMTLS handshake state machines.
//
// Client and Server are pure step machines: they consume one serialized
// handshake message at a time and return the serialized messages to send in
// response, independent of any network I/O. The transport binding in
// pkg/transport drives them over a net.Conn; tests drive them directly.
//
// Both machines fail closed. Any codec, sequencing, or verification failure
// moves the machine to StateFailed, zeroizes all key material, and every
// subsequent Step returns an error. A failed handshake is never retried in
// place: a retry is a new machine with fresh ephemeral keys.
package handshake

import (
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/cert"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
	"github.com/pq-oidc/kemtls-go/pkg/protocol"
)

// State represents the connection state of a handshake machine.
type State int

const (
	// StateIdle is the initial state before any message is sent or received.
	StateIdle State = iota

	// StateAwaitServerHello is the client state after sending ClientHello.
	StateAwaitServerHello

	// StateAwaitFinished awaits the peer's Finished message.
	StateAwaitFinished

	// StateEstablished means both transcript MACs verified; session keys
	// are final and immutable.
	StateEstablished

	// StateFailed is terminal and absorbing. No further message is
	// processed and no key material survives.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitServerHello:
		return "AwaitServerHello"
	case StateAwaitFinished:
		return "AwaitFinished"
	case StateEstablished:
		return "Established"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Identity is the server's long-lived authentication material: a long-term
// KEM key pair and a self-signed certificate binding its public half.
//
// An Identity is immutable after construction and safe for concurrent use
// across server handshakes. It is injected into NewServer explicitly; there
// is no process-wide singleton.
type Identity struct {
	// Certificate is the parsed self-signed certificate.
	Certificate *cert.Certificate

	// KEMKeys is the long-term key pair the certificate binds.
	KEMKeys *pqc.KEMKeyPair

	// certBytes is the serialized certificate sent in every ServerHello.
	certBytes []byte
}

// NewIdentity generates a long-term KEM key pair and signing key pair for
// the given subject and wraps them in a self-signed certificate.
func NewIdentity(subject string, kem pqc.KEM, sig pqc.Signature) (*Identity, error) {
	kemKeys, err := kem.GenerateKeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("identity kem keygen", err)
	}

	sigKeys, err := sig.GenerateKeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("identity sig keygen", err)
	}

	certificate, err := cert.New(subject, kemKeys.Public, sigKeys, sig)
	if err != nil {
		return nil, err
	}

	return &Identity{
		Certificate: certificate,
		KEMKeys:     kemKeys,
		certBytes:   certificate.Marshal(),
	}, nil
}

// CertificateBytes returns the serialized certificate.
func (id *Identity) CertificateBytes() []byte {
	return id.certBytes
}

// expectType distinguishes an out-of-order handshake message from a garbled
// one: a parseable message of the wrong type is a protocol violation, while
// an unreadable type tag is malformed input.
func expectType(msg []byte, want protocol.MessageType) error {
	t, err := protocol.GetMessageType(msg)
	if err != nil {
		return err
	}
	if t != want {
		return qerrors.NewProtocolError("unexpected "+t.String(), qerrors.ErrProtocolViolation)
	}
	return nil
}
