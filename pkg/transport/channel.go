// Package transport binds the handshake state machines and record layer to
// a net.Conn.
//
// This file (channel.go) provides SecureChannel:
//   - Encrypted and authenticated record transmission
//   - Strict sequence enforcement for replay protection
//   - Deadline-driven timeouts that tear the channel down
//   - Graceful close notification via alerts
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pq-oidc/kemtls-go/internal/constants"
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/cert"
	"github.com/pq-oidc/kemtls-go/pkg/crypto"
	"github.com/pq-oidc/kemtls-go/pkg/protocol"
)

// Config holds configuration for the transport layer.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CipherSuite selects the record AEAD. Both endpoints must agree;
	// there is no negotiation on the wire.
	CipherSuite constants.CipherSuite

	// Observer is a shared observer for all channels (ignored if
	// ObserverFactory is set).
	Observer Observer

	// ObserverFactory builds a per-channel observer (takes precedence
	// over Observer).
	ObserverFactory ObserverFactory
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		CipherSuite:  constants.CipherSuiteAES256GCM,
	}
}

// SecureChannel is an established encrypted channel over a net.Conn.
//
// Send and Close are safe for concurrent use. Receive must be called from
// one goroutine at a time.
type SecureChannel struct {
	conn   net.Conn
	codec  *protocol.Codec
	cipher *crypto.RecordCipher

	// peerCert is the verified server certificate; nil on the server side.
	peerCert *cert.Certificate

	observer Observer

	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex

	closed   bool
	closedMu sync.RWMutex

	// shutdownOnce guards the conn close so the socket is released exactly
	// once no matter which of Close, teardown, or a peer close-notify runs
	// first.
	shutdownOnce sync.Once
	shutdownErr  error
}

// Send encrypts and sends one application payload.
func (ch *SecureChannel) Send(data []byte) error {
	if err := ch.checkClosed(); err != nil {
		return err
	}
	if len(data) > constants.MaxRecordPayloadSize {
		return qerrors.ErrMessageTooLarge
	}

	var done func(error)
	if ch.observer != nil {
		_, done = ch.observer.OnSeal(context.Background(), len(data))
	}

	err := ch.send(data)
	if done != nil {
		done(err)
	}
	return err
}

func (ch *SecureChannel) send(data []byte) error {
	seq, ciphertext, err := ch.cipher.Seal(data)
	if err != nil {
		// Sequence exhaustion or AEAD failure poisons the channel.
		ch.teardown(err)
		return err
	}

	msg, err := ch.codec.EncodeRecord(&protocol.Record{Sequence: seq, Ciphertext: ciphertext})
	if err != nil {
		ch.recordProtocolError(err)
		return err
	}

	// A failed or timed-out write may leave a partial frame on the stream;
	// the channel cannot be resynchronized after that.
	if err := ch.write(msg, ch.writeTimeout); err != nil {
		ch.teardown(err)
		return err
	}
	return nil
}

// Receive reads one record and returns the decrypted payload. A peer close
// notification surfaces as ErrConnectionClosed; any authentication or
// sequencing failure tears the channel down.
func (ch *SecureChannel) Receive() ([]byte, error) {
	if err := ch.checkClosed(); err != nil {
		return nil, err
	}

	if ch.readTimeout > 0 {
		_ = ch.conn.SetReadDeadline(time.Now().Add(ch.readTimeout))
	}

	msg, err := protocol.ReadMessage(ch.conn)
	if err != nil {
		err = mapNetError(err)
		ch.teardown(err)
		return nil, err
	}

	msgType, err := protocol.GetMessageType(msg)
	if err != nil {
		ch.recordProtocolError(err)
		ch.teardown(err)
		return nil, err
	}

	switch msgType {
	case protocol.MessageTypeRecord:
		return ch.handleRecord(msg)
	case protocol.MessageTypeAlert:
		return nil, ch.handleAlert(msg)
	default:
		err := qerrors.NewProtocolError("record", qerrors.ErrProtocolViolation)
		ch.recordProtocolError(err)
		ch.teardown(err)
		return nil, err
	}
}

// SendRequest sends a request payload and waits for one response record.
func (ch *SecureChannel) SendRequest(request []byte) ([]byte, error) {
	if err := ch.Send(request); err != nil {
		return nil, err
	}
	return ch.Receive()
}

func (ch *SecureChannel) handleRecord(msg []byte) ([]byte, error) {
	record, err := ch.codec.DecodeRecord(msg)
	if err != nil {
		ch.recordProtocolError(err)
		ch.teardown(err)
		return nil, err
	}

	var done func(error)
	if ch.observer != nil {
		_, done = ch.observer.OnOpen(context.Background(), len(record.Ciphertext))
	}

	plaintext, err := ch.cipher.Open(record.Sequence, record.Ciphertext)
	if done != nil {
		done(err)
	}
	if err != nil {
		if ch.observer != nil && qerrors.Is(err, qerrors.ErrAuthenticationFailed) {
			ch.observer.OnAuthFailure()
		}
		// The alert stays generic so a tampering peer learns nothing
		// about which check rejected the record.
		ch.sendAlert(protocol.AlertCodeRecordFailure)
		ch.teardown(err)
		return nil, err
	}
	return plaintext, nil
}

func (ch *SecureChannel) handleAlert(msg []byte) error {
	alert, err := ch.codec.DecodeAlert(msg)
	if err != nil {
		ch.recordProtocolError(err)
		ch.teardown(err)
		return err
	}

	if alert.Code == protocol.AlertCodeCloseNotify {
		ch.markClosed()
		_ = ch.shutdown()
		return qerrors.ErrConnectionClosed
	}

	err = qerrors.NewProtocolError("alert", qerrors.ErrConnectionClosed)
	ch.recordProtocolError(err)
	ch.teardown(err)
	return err
}

// Close gracefully closes the channel, notifying the peer best-effort. It
// always releases the underlying connection, including when the peer's
// close-notify already marked the channel closed.
func (ch *SecureChannel) Close() error {
	ch.closedMu.Lock()
	alreadyClosed := ch.closed
	ch.closed = true
	ch.closedMu.Unlock()

	if !alreadyClosed {
		// Best-effort close notification with a short deadline so Close
		// never blocks on a dead peer.
		msg := ch.codec.EncodeAlert(protocol.AlertCodeCloseNotify)
		ch.writeMu.Lock()
		_ = ch.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
		_, _ = ch.conn.Write(msg)
		ch.writeMu.Unlock()
	}

	return ch.shutdown()
}

// PeerCertificate returns the verified server certificate, or nil on the
// server side.
func (ch *SecureChannel) PeerCertificate() *cert.Certificate {
	return ch.peerCert
}

// LocalAddr returns the local network address.
func (ch *SecureChannel) LocalAddr() net.Addr {
	return ch.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (ch *SecureChannel) RemoteAddr() net.Addr {
	return ch.conn.RemoteAddr()
}

func (ch *SecureChannel) checkClosed() error {
	ch.closedMu.RLock()
	defer ch.closedMu.RUnlock()
	if ch.closed {
		return qerrors.ErrChannelClosed
	}
	return nil
}

func (ch *SecureChannel) markClosed() {
	ch.closedMu.Lock()
	ch.closed = true
	ch.closedMu.Unlock()
}

// teardown marks the channel failed and closes the connection. No key
// material survives a failed channel.
func (ch *SecureChannel) teardown(err error) {
	ch.markClosed()
	if ch.observer != nil {
		ch.observer.OnChannelFailed(err)
	}
	_ = ch.shutdown()
}

// shutdown closes the connection and reports the channel end exactly once.
func (ch *SecureChannel) shutdown() error {
	ch.shutdownOnce.Do(func() {
		ch.shutdownErr = ch.conn.Close()
		if ch.observer != nil {
			ch.observer.OnChannelEnd()
		}
	})
	return ch.shutdownErr
}

func (ch *SecureChannel) write(msg []byte, timeout time.Duration) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()

	if timeout > 0 {
		_ = ch.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if _, err := ch.conn.Write(msg); err != nil {
		return mapNetError(err)
	}
	return nil
}

// sendAlert sends an alert best-effort with a short deadline.
func (ch *SecureChannel) sendAlert(code protocol.AlertCode) {
	msg := ch.codec.EncodeAlert(code)
	ch.writeMu.Lock()
	_ = ch.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, _ = ch.conn.Write(msg)
	ch.writeMu.Unlock()
}

func (ch *SecureChannel) recordProtocolError(err error) {
	if err == nil || ch.observer == nil {
		return
	}
	var perr *qerrors.ProtocolError
	if qerrors.As(err, &perr) ||
		qerrors.Is(err, qerrors.ErrMalformedMessage) ||
		qerrors.Is(err, qerrors.ErrMessageTooLarge) ||
		qerrors.Is(err, qerrors.ErrProtocolViolation) {
		ch.observer.OnProtocolError(err)
	}
}

// mapNetError converts transport-level errors to the package taxonomy.
func mapNetError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return qerrors.ErrTimeout
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return qerrors.ErrConnectionClosed
	}
	return err
}
