// Package protocol defines the KEMTLS wire messages and their codec.
//
// The handshake message flow:
//
//	Client                                 Server
//	    |                                      |
//	    | -------- ClientHello --------------> |
//	    |   - ephemeral KEM public key         |
//	    |   - client nonce                     |
//	    |                                      |
//	    | <------- ServerHello --------------- |
//	    |   - KEM ciphertext                   |
//	    |   - server nonce                     |
//	    |   - self-signed certificate          |
//	    |                                      |
//	    | <------- ServerFinished ------------ |
//	    |   - transcript MAC                   |
//	    |                                      |
//	    | -------- ClientFinished -----------> |
//	    |   - transcript MAC                   |
//	    |                                      |
//	    |    === Channel Established ===       |
//
// All messages are framed as [1-byte type][4-byte big-endian length][payload].
package protocol

import (
	"github.com/pq-oidc/kemtls-go/internal/constants"
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
)

// MessageType identifies the type of protocol message.
type MessageType uint8

// Protocol message types for handshake, record transport, and error signaling.
const (
	// MessageTypeClientHello initiates the handshake from the client.
	MessageTypeClientHello MessageType = 0x01
	// MessageTypeServerHello answers ClientHello with the encapsulation
	// result and the server certificate.
	MessageTypeServerHello MessageType = 0x02
	// MessageTypeClientFinished carries the client's transcript MAC.
	MessageTypeClientFinished MessageType = 0x05
	// MessageTypeServerFinished carries the server's transcript MAC.
	MessageTypeServerFinished MessageType = 0x06

	// MessageTypeRecord carries encrypted application data.
	MessageTypeRecord MessageType = 0x10

	// MessageTypeAlert signals an error condition or closure.
	MessageTypeAlert MessageType = 0xFF
)

// String returns a human-readable name for the message type.
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeClientHello:
		return "ClientHello"
	case MessageTypeServerHello:
		return "ServerHello"
	case MessageTypeClientFinished:
		return "ClientFinished"
	case MessageTypeServerFinished:
		return "ServerFinished"
	case MessageTypeRecord:
		return "Record"
	case MessageTypeAlert:
		return "Alert"
	default:
		return "Unknown"
	}
}

// AlertCode identifies the condition signaled by an Alert message.
//
// Alert codes are deliberately coarse: a peer observing a failed handshake
// learns only that it failed, not which verification step rejected it.
type AlertCode uint8

const (
	// AlertCodeHandshakeFailure covers every handshake rejection.
	AlertCodeHandshakeFailure AlertCode = 0x01
	// AlertCodeRecordFailure covers record decryption rejections.
	AlertCodeRecordFailure AlertCode = 0x02
	// AlertCodeCloseNotify indicates graceful connection closure.
	AlertCodeCloseNotify AlertCode = 0x03
	// AlertCodeInternalError indicates an internal implementation error.
	AlertCodeInternalError AlertCode = 0x04
)

// ClientHello is sent by the client to begin the handshake.
type ClientHello struct {
	// KEMPublicKey is the client's ephemeral encapsulation key
	KEMPublicKey []byte

	// ClientNonce is a fresh 32-byte random value
	ClientNonce []byte
}

// ServerHello is sent by the server in response to ClientHello.
type ServerHello struct {
	// KEMCiphertext encapsulates the shared secret to the client's key
	KEMCiphertext []byte

	// ServerNonce is a fresh 32-byte random value
	ServerNonce []byte

	// Certificate is the server's serialized self-signed certificate
	Certificate []byte
}

// Finished carries a transcript MAC; it is used for both ClientFinished
// and ServerFinished.
type Finished struct {
	// MAC is the keyed transcript MAC (32 bytes)
	MAC []byte
}

// Record carries one encrypted application payload.
type Record struct {
	// Sequence is the sender's record counter, also bound as AEAD
	// associated data
	Sequence uint64

	// Ciphertext is the AEAD output including the auth tag
	Ciphertext []byte
}

// Alert signals an error condition or connection closure.
type Alert struct {
	Code AlertCode
}

// HeaderSize is the size of the message header (type + length).
const HeaderSize = 5 // 1 byte type + 4 bytes length

// MaxMessageSize is the maximum declared payload size of a protocol message.
const MaxMessageSize = constants.MaxMessageSize

// Validate checks structural validity of a ClientHello against the codec's
// configured KEM sizes.
func (m *ClientHello) validate(kemPublicKeySize int) error {
	if len(m.KEMPublicKey) != kemPublicKeySize {
		return qerrors.ErrMalformedMessage
	}
	if len(m.ClientNonce) != constants.NonceSize {
		return qerrors.ErrMalformedMessage
	}
	return nil
}

func (m *ServerHello) validate(kemCiphertextSize int) error {
	if len(m.KEMCiphertext) != kemCiphertextSize {
		return qerrors.ErrMalformedMessage
	}
	if len(m.ServerNonce) != constants.NonceSize {
		return qerrors.ErrMalformedMessage
	}
	if len(m.Certificate) == 0 {
		return qerrors.ErrMalformedMessage
	}
	return nil
}

func (m *Finished) validate() error {
	if len(m.MAC) != constants.TranscriptMACSize {
		return qerrors.ErrMalformedMessage
	}
	return nil
}
