// mldsa.go implements the Signature capability using ML-DSA-44.
//
// ML-DSA (Module-Lattice-based Digital Signature Algorithm, formerly
// Dilithium) is standardized in NIST FIPS 204. ML-DSA-44 provides NIST
// Category 2 security and is the default scheme for certificate signing.
package pqc

import (
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/schemes"

	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
)

// MLDSA44 implements the Signature capability with ML-DSA-44.
// It is stateless and safe for concurrent use.
type MLDSA44 struct {
	scheme sign.Scheme
}

// NewMLDSA44 returns the ML-DSA-44 capability.
func NewMLDSA44() *MLDSA44 {
	return &MLDSA44{scheme: schemes.ByName("ML-DSA-44")}
}

// Name returns the algorithm identifier.
func (s *MLDSA44) Name() string { return s.scheme.Name() }

// GenerateKeyPair creates a fresh ML-DSA-44 signing key pair.
func (s *MLDSA44) GenerateKeyPair() (*SignatureKeyPair, error) {
	pk, sk, err := s.scheme.GenerateKey()
	if err != nil {
		return nil, qerrors.NewCryptoError("MLDSA44.GenerateKeyPair", err)
	}

	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError("MLDSA44.GenerateKeyPair", err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError("MLDSA44.GenerateKeyPair", err)
	}

	return &SignatureKeyPair{Public: pub, Private: priv}, nil
}

// Sign produces a detached signature over msg.
func (s *MLDSA44) Sign(private, msg []byte) ([]byte, error) {
	sk, err := s.scheme.UnmarshalBinaryPrivateKey(private)
	if err != nil {
		return nil, qerrors.ErrInvalidKeySize
	}
	return s.scheme.Sign(sk, msg, nil), nil
}

// Verify reports whether sig is a valid signature over msg under public.
// Any parse failure counts as an invalid signature.
func (s *MLDSA44) Verify(public, msg, sig []byte) bool {
	pk, err := s.scheme.UnmarshalBinaryPublicKey(public)
	if err != nil {
		return false
	}
	if len(sig) != s.scheme.SignatureSize() {
		return false
	}
	return s.scheme.Verify(pk, msg, sig, nil)
}

// PublicKeySize returns the encoded verification key length.
func (s *MLDSA44) PublicKeySize() int { return s.scheme.PublicKeySize() }

// SignatureSize returns the encoded signature length.
func (s *MLDSA44) SignatureSize() int { return s.scheme.SignatureSize() }
