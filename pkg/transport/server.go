// server.go accepts connections, drives the server handshake, and runs the
// request/response dispatch loop.
package transport

import (
	"context"
	"net"
	"sync"

	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/crypto"
	"github.com/pq-oidc/kemtls-go/pkg/handshake"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
	"github.com/pq-oidc/kemtls-go/pkg/protocol"
)

// Handler processes one decrypted request and returns the response payload.
// It runs on the connection's goroutine; returning an error closes the
// channel.
type Handler func(request []byte) ([]byte, error)

// Listener accepts incoming connections and establishes server channels.
//
// The identity is shared read-only across all accepted handshakes; each
// connection gets its own handshake machine and session keys.
type Listener struct {
	listener net.Listener
	identity *handshake.Identity
	kem      pqc.KEM
	sig      pqc.Signature
	config   Config
}

// Listen creates a listener with default configuration.
func Listen(network, address string, identity *handshake.Identity, kem pqc.KEM, sig pqc.Signature) (*Listener, error) {
	return ListenWithConfig(network, address, identity, kem, sig, DefaultConfig())
}

// ListenWithConfig creates a listener with custom configuration.
func ListenWithConfig(network, address string, identity *handshake.Identity, kem pqc.KEM, sig pqc.Signature, config Config) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return &Listener{
		listener: ln,
		identity: identity,
		kem:      kem,
		sig:      sig,
		config:   config,
	}, nil
}

// Accept waits for the next connection and completes the server handshake
// over it.
func (l *Listener) Accept() (*SecureChannel, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	return AcceptServerChannel(conn, l.identity, l.kem, l.sig, l.config)
}

// Serve accepts connections until the listener is closed, running handler
// for every decrypted request on each channel. Each connection runs on its
// own goroutine; Serve returns when Accept fails permanently.
func (l *Listener) Serve(handler Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		ch, err := l.Accept()
		if err != nil {
			if qerrors.Is(err, net.ErrClosed) {
				return nil
			}
			// Failed handshakes are per-connection events, not
			// listener failures.
			if _, ok := err.(net.Error); !ok {
				continue
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveChannel(ch, handler)
		}()
	}
}

// serveChannel runs the decrypt → handle → encrypt → respond loop until the
// channel closes or the handler fails.
func serveChannel(ch *SecureChannel, handler Handler) {
	defer func() { _ = ch.Close() }()

	for {
		request, err := ch.Receive()
		if err != nil {
			return
		}

		response, err := handler(request)
		if err != nil {
			return
		}

		if err := ch.Send(response); err != nil {
			return
		}
	}
}

// Close closes the listener. Established channels are unaffected.
func (l *Listener) Close() error {
	return l.listener.Close()
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// AcceptServerChannel performs the server handshake over an existing
// connection. On failure the connection is closed and a generic alert is
// sent so the peer learns only that the handshake failed.
func AcceptServerChannel(conn net.Conn, identity *handshake.Identity, kem pqc.KEM, sig pqc.Signature, config Config) (*SecureChannel, error) {
	observer := observerFromConfig(config, "server")
	if observer != nil {
		observer.OnChannelStart()
	}

	var done func(error)
	if observer != nil {
		_, done = observer.OnHandshakeStart(context.Background())
	}

	ch, err := runServerHandshake(conn, identity, kem, sig, config, observer)
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

func runServerHandshake(conn net.Conn, identity *handshake.Identity, kem pqc.KEM, sig pqc.Signature, config Config, observer Observer) (*SecureChannel, error) {
	hs := handshake.NewServer(identity, kem, sig)

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

	cipher, err := crypto.NewRecordCipher(config.CipherSuite, keys, false)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &SecureChannel{
		conn:         conn,
		codec:        protocol.NewCodec(kem.PublicKeySize(), kem.CiphertextSize()),
		cipher:       cipher,
		observer:     observer,
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
	}, nil
}
