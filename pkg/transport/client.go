// client.go drives the client handshake over a net.Conn and produces an
// established SecureChannel.
package transport

import (
	"context"
	"net"
	"time"

	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/crypto"
	"github.com/pq-oidc/kemtls-go/pkg/handshake"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
	"github.com/pq-oidc/kemtls-go/pkg/protocol"
)

// Dial connects to address and performs the client handshake with default
// configuration.
func Dial(network, address string, kem pqc.KEM, sig pqc.Signature) (*SecureChannel, error) {
	return DialWithConfig(network, address, kem, sig, DefaultConfig())
}

// DialWithConfig connects to address and performs the client handshake.
func DialWithConfig(network, address string, kem pqc.KEM, sig pqc.Signature, config Config) (*SecureChannel, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return OpenClientChannel(conn, kem, sig, config)
}

// OpenClientChannel performs the client handshake over an existing
// connection. On failure the connection is closed and a generic alert is
// sent so the peer learns only that the handshake failed.
func OpenClientChannel(conn net.Conn, kem pqc.KEM, sig pqc.Signature, config Config) (*SecureChannel, error) {
	observer := observerFromConfig(config, "client")
	if observer != nil {
		observer.OnChannelStart()
	}

	var done func(error)
	if observer != nil {
		_, done = observer.OnHandshakeStart(context.Background())
	}

	ch, err := runClientHandshake(conn, kem, sig, config, observer)
	if done != nil {
		done(err)
	}
	if err != nil {
		if observer != nil {
			observer.OnChannelFailed(err)
			observer.OnChannelEnd()
		}
		return nil, err
	}
	return ch, nil
}

func runClientHandshake(conn net.Conn, kem pqc.KEM, sig pqc.Signature, config Config, observer Observer) (*SecureChannel, error) {
	hs := handshake.NewClient(kem, sig)

	out, err := hs.Start()
	if err != nil {
		abortHandshake(conn, kem, config)
		return nil, err
	}
	if err := writeHandshake(conn, out, config.WriteTimeout); err != nil {
		_ = conn.Close()
		return nil, err
	}

	for !hs.Established() {
		msg, err := readHandshake(conn, config.ReadTimeout)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}

		out, err := hs.Step(msg)
		if err != nil {
			abortHandshake(conn, kem, config)
			return nil, err
		}
		if err := writeHandshake(conn, out, config.WriteTimeout); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	keys, err := hs.SessionKeys()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	cipher, err := crypto.NewRecordCipher(config.CipherSuite, keys, true)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &SecureChannel{
		conn:         conn,
		codec:        protocol.NewCodec(kem.PublicKeySize(), kem.CiphertextSize()),
		cipher:       cipher,
		peerCert:     hs.PeerCertificate(),
		observer:     observer,
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
	}, nil
}

// readHandshake reads one framed handshake message with a deadline.
func readHandshake(conn net.Conn, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		return nil, mapNetError(err)
	}

	// An alert during the handshake means the peer aborted.
	if t, terr := protocol.GetMessageType(msg); terr == nil && t == protocol.MessageTypeAlert {
		return nil, qerrors.NewProtocolError("handshake", qerrors.ErrHandshakeFailed)
	}
	return msg, nil
}

// writeHandshake sends the machine's outgoing messages with a deadline.
func writeHandshake(conn net.Conn, msgs [][]byte, timeout time.Duration) error {
	for _, msg := range msgs {
		if timeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		if err := protocol.WriteMessage(conn, msg); err != nil {
			return mapNetError(err)
		}
	}
	return nil
}

// abortHandshake sends a single generic alert and closes the connection.
// The code never varies with the failure cause.
func abortHandshake(conn net.Conn, kem pqc.KEM, config Config) {
	codec := protocol.NewCodec(kem.PublicKeySize(), kem.CiphertextSize())
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = conn.Write(codec.EncodeAlert(protocol.AlertCodeHandshakeFailure))
	_ = conn.Close()
}
