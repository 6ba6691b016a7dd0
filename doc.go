// Package kemtls provides a quantum-resistant connection handshake built on
// key encapsulation instead of online signatures.
//
// A client and server establish a server-authenticated encrypted channel:
// the client sends an ephemeral ML-KEM-768 public key, the server
// encapsulates a shared secret against it and authenticates with a
// self-signed ML-DSA-44 certificate, and both sides bind the exchange with
// transcript MACs before any application data flows.
//
// # Quick Start
//
// For a complete secure channel with handshake:
//
//	import (
//		"github.com/pq-oidc/kemtls-go/pkg/handshake"
//		"github.com/pq-oidc/kemtls-go/pkg/pqc"
//		"github.com/pq-oidc/kemtls-go/pkg/transport"
//	)
//
//	kem, sig := pqc.NewMLKEM768(), pqc.NewMLDSA44()
//
//	// Server
//	identity, _ := handshake.NewIdentity("example.org", kem, sig)
//	listener, _ := transport.Listen("tcp", ":9443", identity, kem, sig)
//	go listener.Serve(func(req []byte) ([]byte, error) {
//		return []byte("ok"), nil
//	})
//
//	// Client
//	ch, _ := transport.Dial("tcp", "localhost:9443", kem, sig)
//	resp, _ := ch.SendRequest([]byte("hello"))
//
// For driving the handshake state machines directly (no I/O):
//
//	client := handshake.NewClient(kem, sig)
//	out, _ := client.Start() // serialized ClientHello
//
// # Package Structure
//
//   - pkg/pqc: ML-KEM and ML-DSA capability interfaces and CIRCL-backed implementations
//   - pkg/crypto: session key schedule, transcript MAC, and record AEAD
//   - pkg/cert: self-signed certificate model
//   - pkg/protocol: wire message definitions and codec
//   - pkg/handshake: pure client and server handshake state machines
//   - pkg/transport: net.Conn binding, secure channel, and channel pool
//   - pkg/metrics: structured logging, metrics collection, and tracing
//   - internal/constants: security parameters and protocol constants
//   - internal/errors: error taxonomy for precise failure classification
//
// # Security Properties
//
//   - Post-quantum key exchange: ML-KEM-768 (NIST FIPS 203)
//   - Post-quantum authentication: ML-DSA-44 (NIST FIPS 204)
//   - Forward secrecy: a fresh ephemeral KEM key pair per handshake
//   - Transcript binding: HMAC-SHA256 over all handshake messages
//   - Authenticated records: AES-256-GCM or ChaCha20-Poly1305 with strict
//     sequence enforcement
//   - Fail-closed: any tamper, reorder, or verification failure is terminal
//
// The trust model is a single self-signed certificate per server, suitable
// for research and closed deployments rather than public PKI.
package kemtls
