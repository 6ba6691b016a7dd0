// codec.go implements serialization and deserialization of protocol messages.
//
// Wire Format:
//
//	+------+--------+----------+
//	| Type | Length | Payload  |
//	| 1B   | 4B BE  | Variable |
//	+------+--------+----------+
//
// Length is a big-endian uint32 covering the payload only. Declared lengths
// above MaxMessageSize are rejected before any allocation.
//
// ClientHello payload:  kem_public_key ‖ client_nonce[32]
// ServerHello payload:  kem_ciphertext ‖ server_nonce[32] ‖ certificate
// Finished payload:     mac[32]
// Record payload:       sequence[8] ‖ ciphertext
// Alert payload:        code[1]
//
// KEM field widths are fixed per codec instance: they are taken from the KEM
// capability chosen at construction time, so no lengths for them appear on
// the wire.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pq-oidc/kemtls-go/internal/constants"
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
)

// Codec serializes and deserializes protocol messages. The KEM field sizes
// are fixed at construction.
type Codec struct {
	kemPublicKeySize  int
	kemCiphertextSize int
}

// NewCodec creates a codec for the given KEM field sizes.
func NewCodec(kemPublicKeySize, kemCiphertextSize int) *Codec {
	return &Codec{
		kemPublicKeySize:  kemPublicKeySize,
		kemCiphertextSize: kemCiphertextSize,
	}
}

// Encode frames a payload under the given message type.
func Encode(t MessageType, payload []byte) ([]byte, error) {
	if len(payload) > MaxMessageSize {
		return nil, qerrors.ErrMessageTooLarge
	}

	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(t)
	binary.BigEndian.PutUint32(buf[1:], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// Decode parses one framed message from the front of data, returning the
// type, the payload, and the number of bytes consumed. It fails with
// ErrMalformedMessage if the declared length exceeds the available data and
// with ErrMessageTooLarge if it exceeds MaxMessageSize.
func Decode(data []byte) (MessageType, []byte, int, error) {
	if len(data) < HeaderSize {
		return 0, nil, 0, qerrors.ErrMalformedMessage
	}

	length := binary.BigEndian.Uint32(data[1:5])
	if length > MaxMessageSize {
		return 0, nil, 0, qerrors.ErrMessageTooLarge
	}
	if len(data) < HeaderSize+int(length) {
		return 0, nil, 0, qerrors.ErrMalformedMessage
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:HeaderSize+int(length)])
	return MessageType(data[0]), payload, HeaderSize + int(length), nil
}

// ReadMessage reads one complete framed message from the reader. The
// returned slice includes the header, so it can be fed to the transcript
// and to Decode unchanged.
func ReadMessage(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[1:5])
	if length > MaxMessageSize {
		return nil, qerrors.ErrMessageTooLarge
	}

	msg := make([]byte, HeaderSize+length)
	copy(msg, header)
	if length > 0 {
		if _, err := io.ReadFull(r, msg[HeaderSize:]); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// WriteMessage writes a framed message to the writer.
func WriteMessage(w io.Writer, msg []byte) error {
	_, err := w.Write(msg)
	return err
}

// GetMessageType returns the type tag of a framed message.
func GetMessageType(data []byte) (MessageType, error) {
	if len(data) < 1 {
		return 0, qerrors.ErrMalformedMessage
	}
	return MessageType(data[0]), nil
}

// EncodeClientHello serializes a ClientHello message.
func (c *Codec) EncodeClientHello(m *ClientHello) ([]byte, error) {
	if err := m.validate(c.kemPublicKeySize); err != nil {
		return nil, err
	}

	payload := make([]byte, 0, c.kemPublicKeySize+constants.NonceSize)
	payload = append(payload, m.KEMPublicKey...)
	payload = append(payload, m.ClientNonce...)
	return Encode(MessageTypeClientHello, payload)
}

// DecodeClientHello deserializes a framed ClientHello message.
func (c *Codec) DecodeClientHello(data []byte) (*ClientHello, error) {
	t, payload, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if t != MessageTypeClientHello {
		return nil, qerrors.ErrMalformedMessage
	}
	if len(payload) != c.kemPublicKeySize+constants.NonceSize {
		return nil, qerrors.ErrMalformedMessage
	}

	m := &ClientHello{
		KEMPublicKey: payload[:c.kemPublicKeySize],
		ClientNonce:  payload[c.kemPublicKeySize:],
	}
	if err := m.validate(c.kemPublicKeySize); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeServerHello serializes a ServerHello message.
func (c *Codec) EncodeServerHello(m *ServerHello) ([]byte, error) {
	if err := m.validate(c.kemCiphertextSize); err != nil {
		return nil, err
	}

	payload := make([]byte, 0, c.kemCiphertextSize+constants.NonceSize+len(m.Certificate))
	payload = append(payload, m.KEMCiphertext...)
	payload = append(payload, m.ServerNonce...)
	payload = append(payload, m.Certificate...)
	return Encode(MessageTypeServerHello, payload)
}

// DecodeServerHello deserializes a framed ServerHello message.
func (c *Codec) DecodeServerHello(data []byte) (*ServerHello, error) {
	t, payload, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if t != MessageTypeServerHello {
		return nil, qerrors.ErrMalformedMessage
	}
	if len(payload) <= c.kemCiphertextSize+constants.NonceSize {
		return nil, qerrors.ErrMalformedMessage
	}

	offset := 0
	m := &ServerHello{}
	m.KEMCiphertext = payload[offset : offset+c.kemCiphertextSize]
	offset += c.kemCiphertextSize
	m.ServerNonce = payload[offset : offset+constants.NonceSize]
	offset += constants.NonceSize
	m.Certificate = payload[offset:]

	if err := m.validate(c.kemCiphertextSize); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeFinished serializes a ClientFinished or ServerFinished message.
func (c *Codec) EncodeFinished(t MessageType, m *Finished) ([]byte, error) {
	if t != MessageTypeClientFinished && t != MessageTypeServerFinished {
		return nil, qerrors.ErrMalformedMessage
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return Encode(t, m.MAC)
}

// DecodeFinished deserializes a framed Finished message of the expected type.
func (c *Codec) DecodeFinished(expected MessageType, data []byte) (*Finished, error) {
	t, payload, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if t != expected {
		return nil, qerrors.ErrMalformedMessage
	}
	if len(payload) != constants.TranscriptMACSize {
		return nil, qerrors.ErrMalformedMessage
	}
	return &Finished{MAC: payload}, nil
}

// EncodeRecord serializes a Record message.
func (c *Codec) EncodeRecord(m *Record) ([]byte, error) {
	if len(m.Ciphertext) > constants.MaxRecordPayloadSize {
		return nil, qerrors.ErrMessageTooLarge
	}

	payload := make([]byte, 8+len(m.Ciphertext))
	binary.BigEndian.PutUint64(payload, m.Sequence)
	copy(payload[8:], m.Ciphertext)
	return Encode(MessageTypeRecord, payload)
}

// DecodeRecord deserializes a framed Record message.
func (c *Codec) DecodeRecord(data []byte) (*Record, error) {
	t, payload, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if t != MessageTypeRecord {
		return nil, qerrors.ErrMalformedMessage
	}
	if len(payload) < 8+constants.AEADTagSize {
		return nil, qerrors.ErrMalformedMessage
	}
	return &Record{
		Sequence:   binary.BigEndian.Uint64(payload[:8]),
		Ciphertext: payload[8:],
	}, nil
}

// EncodeAlert serializes an Alert message.
func (c *Codec) EncodeAlert(code AlertCode) []byte {
	msg, _ := Encode(MessageTypeAlert, []byte{byte(code)})
	return msg
}

// DecodeAlert deserializes a framed Alert message.
func (c *Codec) DecodeAlert(data []byte) (*Alert, error) {
	t, payload, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if t != MessageTypeAlert || len(payload) != 1 {
		return nil, qerrors.ErrMalformedMessage
	}
	return &Alert{Code: AlertCode(payload[0])}, nil
}
