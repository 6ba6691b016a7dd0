// mlkem.go implements the KEM capability using ML-KEM-768.
//
// ML-KEM (Module-Lattice-based Key-Encapsulation Mechanism) is standardized
// in NIST FIPS 203. Its security rests on the Module Learning With Errors
// problem. ML-KEM-768 provides NIST Category 3 security.
package pqc

import (
	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/schemes"

	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
)

// MLKEM768 implements the KEM capability with ML-KEM-768.
// It is stateless and safe for concurrent use.
type MLKEM768 struct {
	scheme kem.Scheme
}

// NewMLKEM768 returns the ML-KEM-768 capability.
func NewMLKEM768() *MLKEM768 {
	return &MLKEM768{scheme: schemes.ByName("ML-KEM-768")}
}

// Name returns the algorithm identifier.
func (k *MLKEM768) Name() string { return k.scheme.Name() }

// GenerateKeyPair creates a fresh ML-KEM-768 key pair from the system CSPRNG.
func (k *MLKEM768) GenerateKeyPair() (*KEMKeyPair, error) {
	pk, sk, err := k.scheme.GenerateKeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEM768.GenerateKeyPair", err)
	}

	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEM768.GenerateKeyPair", err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEM768.GenerateKeyPair", err)
	}

	return &KEMKeyPair{Public: pub, Private: priv}, nil
}

// Encapsulate derives a shared secret against a peer's encapsulation key.
func (k *MLKEM768) Encapsulate(public []byte) (ciphertext, sharedSecret []byte, err error) {
	pk, err := k.scheme.UnmarshalBinaryPublicKey(public)
	if err != nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}

	ciphertext, sharedSecret, err = k.scheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("MLKEM768.Encapsulate", err)
	}

	return ciphertext, sharedSecret, nil
}

// Decapsulate recovers the shared secret from a received ciphertext.
// ML-KEM uses implicit rejection: a tampered ciphertext decapsulates to an
// unrelated secret rather than an error, and the handshake's transcript MAC
// is what surfaces the mismatch.
func (k *MLKEM768) Decapsulate(private, ciphertext []byte) ([]byte, error) {
	sk, err := k.scheme.UnmarshalBinaryPrivateKey(private)
	if err != nil {
		return nil, qerrors.ErrInvalidKeySize
	}
	if len(ciphertext) != k.scheme.CiphertextSize() {
		return nil, qerrors.ErrInvalidCiphertext
	}

	sharedSecret, err := k.scheme.Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, qerrors.NewCryptoError("MLKEM768.Decapsulate", err)
	}

	return sharedSecret, nil
}

// PublicKeySize returns the encoded encapsulation key length.
func (k *MLKEM768) PublicKeySize() int { return k.scheme.PublicKeySize() }

// CiphertextSize returns the encoded ciphertext length.
func (k *MLKEM768) CiphertextSize() int { return k.scheme.CiphertextSize() }

// SharedSecretSize returns the shared secret length.
func (k *MLKEM768) SharedSecretSize() int { return k.scheme.SharedKeySize() }
