// Package pqc defines the post-quantum capability interfaces consumed by the
// handshake engine, together with production implementations backed by
// CIRCL's ML-KEM and ML-DSA.
//
// The engine never selects algorithms at runtime: a concrete KEM and
// Signature capability is passed to the client or server constructor once,
// and every key, ciphertext, and signature on the wire is framed using that
// capability's fixed sizes.
package pqc

// KEMKeyPair holds an encapsulation key pair in its encoded form.
type KEMKeyPair struct {
	// Public is the encapsulation key, sent on the wire
	Public []byte

	// Private is the decapsulation key, never leaves the process
	Private []byte
}

// KEM is the key-encapsulation capability consumed by the handshake.
//
// Implementations must be safe for concurrent use: the server side shares a
// single KEM across connections.
type KEM interface {
	// Name identifies the algorithm family (e.g. "ML-KEM-768").
	Name() string

	// GenerateKeyPair creates a fresh key pair.
	GenerateKeyPair() (*KEMKeyPair, error)

	// Encapsulate derives a shared secret against the peer's public key,
	// returning the ciphertext to transmit and the local copy of the secret.
	Encapsulate(public []byte) (ciphertext, sharedSecret []byte, err error)

	// Decapsulate recovers the shared secret from a received ciphertext.
	Decapsulate(private, ciphertext []byte) (sharedSecret []byte, err error)

	// PublicKeySize is the encoded public key length in bytes.
	PublicKeySize() int

	// CiphertextSize is the encoded ciphertext length in bytes.
	CiphertextSize() int

	// SharedSecretSize is the shared secret length in bytes.
	SharedSecretSize() int
}

// SignatureKeyPair holds a signing key pair in its encoded form.
type SignatureKeyPair struct {
	// Public is the verification key, embedded in certificates
	Public []byte

	// Private is the signing key, held by the server for its lifetime
	Private []byte
}

// Signature is the digital signature capability consumed by the
// certificate model.
//
// Implementations must be safe for concurrent use: the server's long-term
// signing key is shared read-only across connections.
type Signature interface {
	// Name identifies the algorithm family (e.g. "ML-DSA-44").
	Name() string

	// GenerateKeyPair creates a fresh signing key pair.
	GenerateKeyPair() (*SignatureKeyPair, error)

	// Sign produces a signature over msg with the given private key.
	Sign(private, msg []byte) ([]byte, error)

	// Verify reports whether sig is a valid signature over msg under public.
	Verify(public, msg, sig []byte) bool

	// PublicKeySize is the encoded verification key length in bytes.
	PublicKeySize() int

	// SignatureSize is the encoded signature length in bytes.
	SignatureSize() int
}
