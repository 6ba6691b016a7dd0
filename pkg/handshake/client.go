// client.go implements the client side of the handshake state machine.
package handshake

import (
	"bytes"

	"github.com/pq-oidc/kemtls-go/internal/constants"
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/cert"
	"github.com/pq-oidc/kemtls-go/pkg/crypto"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
	"github.com/pq-oidc/kemtls-go/pkg/protocol"
)

// Client drives the client role of the handshake.
//
// Lifecycle: Start, then one Step per received handshake message, until
// State reports Established or Failed. Not safe for concurrent use; each
// connection owns exactly one Client.
type Client struct {
	kem   pqc.KEM
	sig   pqc.Signature
	codec *protocol.Codec
	state State

	// ephemeral lives for a single handshake attempt; the private half is
	// zeroized as soon as decapsulation has run, and again on failure.
	ephemeral   *pqc.KEMKeyPair
	clientNonce []byte

	keys     *crypto.SessionKeys
	peerCert *cert.Certificate

	transcript bytes.Buffer
}

// NewClient creates a client handshake machine over the given capabilities.
func NewClient(kem pqc.KEM, sig pqc.Signature) *Client {
	return &Client{
		kem:   kem,
		sig:   sig,
		codec: protocol.NewCodec(kem.PublicKeySize(), kem.CiphertextSize()),
		state: StateIdle,
	}
}

// Start generates the ephemeral key pair and returns the serialized
// ClientHello to send.
func (c *Client) Start() ([][]byte, error) {
	if c.state != StateIdle {
		return nil, c.fail(qerrors.NewProtocolError("start", qerrors.ErrProtocolViolation))
	}

	keys, err := c.kem.GenerateKeyPair()
	if err != nil {
		return nil, c.fail(qerrors.NewCryptoError("ephemeral keygen", err))
	}
	c.ephemeral = keys

	c.clientNonce, err = crypto.SecureRandomBytes(constants.NonceSize)
	if err != nil {
		return nil, c.fail(qerrors.NewCryptoError("client nonce", err))
	}

	hello, err := c.codec.EncodeClientHello(&protocol.ClientHello{
		KEMPublicKey: c.ephemeral.Public,
		ClientNonce:  c.clientNonce,
	})
	if err != nil {
		return nil, c.fail(err)
	}

	c.transcript.Write(hello)
	c.state = StateAwaitServerHello
	return [][]byte{hello}, nil
}

// Step processes one serialized handshake message and returns any messages
// to send in response. After a failure it always returns ErrHandshakeFailed.
func (c *Client) Step(msg []byte) ([][]byte, error) {
	switch c.state {
	case StateAwaitServerHello:
		return nil, c.processServerHello(msg)
	case StateAwaitFinished:
		return c.processServerFinished(msg)
	case StateFailed:
		return nil, qerrors.ErrHandshakeFailed
	default:
		return nil, c.fail(qerrors.NewProtocolError("step", qerrors.ErrProtocolViolation))
	}
}

// processServerHello verifies the server certificate, decapsulates the
// shared secret, and derives session keys.
func (c *Client) processServerHello(msg []byte) error {
	if err := expectType(msg, protocol.MessageTypeServerHello); err != nil {
		return c.fail(err)
	}
	hello, err := c.codec.DecodeServerHello(msg)
	if err != nil {
		return c.fail(err)
	}

	peerCert, err := cert.Unmarshal(hello.Certificate)
	if err != nil {
		return c.fail(err)
	}
	if err := peerCert.Verify(c.sig); err != nil {
		return c.fail(err)
	}

	sharedSecret, err := c.kem.Decapsulate(c.ephemeral.Private, hello.KEMCiphertext)
	crypto.Zeroize(c.ephemeral.Private)
	if err != nil {
		return c.fail(qerrors.NewCryptoError("decapsulate", err))
	}
	if len(sharedSecret) != c.kem.SharedSecretSize() {
		crypto.Zeroize(sharedSecret)
		return c.fail(qerrors.NewCryptoError("decapsulate", qerrors.ErrInvalidKeySize))
	}

	keys, err := crypto.DeriveSessionKeys(sharedSecret, c.clientNonce, hello.ServerNonce)
	crypto.Zeroize(sharedSecret)
	if err != nil {
		return c.fail(err)
	}

	c.keys = keys
	c.peerCert = peerCert
	c.transcript.Write(msg)
	c.state = StateAwaitFinished
	return nil
}

// processServerFinished verifies the server's transcript MAC and returns
// the serialized ClientFinished to send.
func (c *Client) processServerFinished(msg []byte) ([][]byte, error) {
	if err := expectType(msg, protocol.MessageTypeServerFinished); err != nil {
		return nil, c.fail(err)
	}
	finished, err := c.codec.DecodeFinished(protocol.MessageTypeServerFinished, msg)
	if err != nil {
		return nil, c.fail(err)
	}

	// The server MACed the transcript up to and including ServerHello.
	if !crypto.VerifyTranscriptMAC(c.keys.MACKey, c.transcript.Bytes(), finished.MAC) {
		return nil, c.fail(qerrors.NewProtocolError("server finished", qerrors.ErrAuthenticationFailed))
	}
	c.transcript.Write(msg)

	clientFinished, err := c.codec.EncodeFinished(protocol.MessageTypeClientFinished, &protocol.Finished{
		MAC: crypto.TranscriptMAC(c.keys.MACKey, c.transcript.Bytes()),
	})
	if err != nil {
		return nil, c.fail(err)
	}

	c.transcript.Write(clientFinished)
	c.state = StateEstablished
	return [][]byte{clientFinished}, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state
}

// Established reports whether the handshake completed successfully.
func (c *Client) Established() bool {
	return c.state == StateEstablished
}

// SessionKeys returns the derived session keys. It fails unless the
// handshake is established.
func (c *Client) SessionKeys() (*crypto.SessionKeys, error) {
	if c.state != StateEstablished {
		return nil, qerrors.ErrHandshakeFailed
	}
	return c.keys, nil
}

// PeerCertificate returns the verified server certificate, or nil before
// the ServerHello has been processed.
func (c *Client) PeerCertificate() *cert.Certificate {
	return c.peerCert
}

// fail moves the machine to the terminal failed state and destroys all key
// material, then returns err for the caller to propagate.
func (c *Client) fail(err error) error {
	if c.ephemeral != nil {
		crypto.Zeroize(c.ephemeral.Private)
	}
	if c.keys != nil {
		c.keys.Zeroize()
		c.keys = nil
	}
	c.state = StateFailed
	return err
}
