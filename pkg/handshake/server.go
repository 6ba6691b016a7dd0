// server.go implements the server side of the handshake state machine.
package handshake

import (
	"bytes"

	"github.com/pq-oidc/kemtls-go/internal/constants"
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/crypto"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
	"github.com/pq-oidc/kemtls-go/pkg/protocol"
)

// Server drives the server role of the handshake.
//
// The injected Identity is read-only; everything else is local to the one
// connection that owns this machine. Not safe for concurrent use.
type Server struct {
	identity *Identity
	kem      pqc.KEM
	sig      pqc.Signature
	codec    *protocol.Codec
	state    State

	serverNonce []byte
	keys        *crypto.SessionKeys

	transcript bytes.Buffer
}

// NewServer creates a server handshake machine for the given identity.
func NewServer(identity *Identity, kem pqc.KEM, sig pqc.Signature) *Server {
	return &Server{
		identity: identity,
		kem:      kem,
		sig:      sig,
		codec:    protocol.NewCodec(kem.PublicKeySize(), kem.CiphertextSize()),
		state:    StateIdle,
	}
}

// Step processes one serialized handshake message and returns any messages
// to send in response. After a failure it always returns ErrHandshakeFailed.
func (s *Server) Step(msg []byte) ([][]byte, error) {
	switch s.state {
	case StateIdle:
		return s.processClientHello(msg)
	case StateAwaitFinished:
		return nil, s.processClientFinished(msg)
	case StateFailed:
		return nil, qerrors.ErrHandshakeFailed
	default:
		return nil, s.fail(qerrors.NewProtocolError("step", qerrors.ErrProtocolViolation))
	}
}

// processClientHello encapsulates against the client's ephemeral key,
// derives session keys, and returns the serialized ServerHello and
// ServerFinished to send.
func (s *Server) processClientHello(msg []byte) ([][]byte, error) {
	if err := expectType(msg, protocol.MessageTypeClientHello); err != nil {
		return nil, s.fail(err)
	}
	hello, err := s.codec.DecodeClientHello(msg)
	if err != nil {
		return nil, s.fail(err)
	}
	s.transcript.Write(msg)

	ciphertext, sharedSecret, err := s.kem.Encapsulate(hello.KEMPublicKey)
	if err != nil {
		return nil, s.fail(qerrors.NewCryptoError("encapsulate", err))
	}
	if len(sharedSecret) != s.kem.SharedSecretSize() {
		crypto.Zeroize(sharedSecret)
		return nil, s.fail(qerrors.NewCryptoError("encapsulate", qerrors.ErrInvalidKeySize))
	}

	s.serverNonce, err = crypto.SecureRandomBytes(constants.NonceSize)
	if err != nil {
		crypto.Zeroize(sharedSecret)
		return nil, s.fail(qerrors.NewCryptoError("server nonce", err))
	}

	keys, err := crypto.DeriveSessionKeys(sharedSecret, hello.ClientNonce, s.serverNonce)
	crypto.Zeroize(sharedSecret)
	if err != nil {
		return nil, s.fail(err)
	}
	s.keys = keys

	serverHello, err := s.codec.EncodeServerHello(&protocol.ServerHello{
		KEMCiphertext: ciphertext,
		ServerNonce:   s.serverNonce,
		Certificate:   s.identity.certBytes,
	})
	if err != nil {
		return nil, s.fail(err)
	}
	s.transcript.Write(serverHello)

	// ServerFinished MACs the transcript up to and including ServerHello.
	serverFinished, err := s.codec.EncodeFinished(protocol.MessageTypeServerFinished, &protocol.Finished{
		MAC: crypto.TranscriptMAC(s.keys.MACKey, s.transcript.Bytes()),
	})
	if err != nil {
		return nil, s.fail(err)
	}
	s.transcript.Write(serverFinished)

	s.state = StateAwaitFinished
	return [][]byte{serverHello, serverFinished}, nil
}

// processClientFinished verifies the client's transcript MAC.
func (s *Server) processClientFinished(msg []byte) error {
	if err := expectType(msg, protocol.MessageTypeClientFinished); err != nil {
		return s.fail(err)
	}
	finished, err := s.codec.DecodeFinished(protocol.MessageTypeClientFinished, msg)
	if err != nil {
		return s.fail(err)
	}

	if !crypto.VerifyTranscriptMAC(s.keys.MACKey, s.transcript.Bytes(), finished.MAC) {
		return s.fail(qerrors.NewProtocolError("client finished", qerrors.ErrAuthenticationFailed))
	}
	s.transcript.Write(msg)

	s.state = StateEstablished
	return nil
}

// State returns the current connection state.
func (s *Server) State() State {
	return s.state
}

// Established reports whether the handshake completed successfully.
func (s *Server) Established() bool {
	return s.state == StateEstablished
}

// SessionKeys returns the derived session keys. It fails unless the
// handshake is established.
func (s *Server) SessionKeys() (*crypto.SessionKeys, error) {
	if s.state != StateEstablished {
		return nil, qerrors.ErrHandshakeFailed
	}
	return s.keys, nil
}

// fail moves the machine to the terminal failed state and destroys all key
// material, then returns err for the caller to propagate.
func (s *Server) fail(err error) error {
	if s.keys != nil {
		s.keys.Zeroize()
		s.keys = nil
	}
	s.state = StateFailed
	return err
}
