// kdf.go implements the session key schedule.
//
// The schedule expands one KEM shared secret into independent symmetric keys
// using HKDF-SHA256 (RFC 5869):
//
//	enc_key = HKDF(salt, shared_secret, "kemtls v1 enc" || client_nonce || server_nonce, 32)
//	mac_key = HKDF(salt, shared_secret, "kemtls v1 mac" || client_nonce || server_nonce, 32)
//	iv      = HKDF(salt, shared_secret, "kemtls v1 iv"  || client_nonce || server_nonce, 16)
//
// The derivation is a pure function: identical inputs always yield identical
// outputs, which is what makes the handshake testable with fixed vectors.
// Distinct labels keep the three outputs independent; the nonce context binds
// the keys to this session's freshness values.
package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/pq-oidc/kemtls-go/internal/constants"
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
)

// SessionKeys holds the symmetric material derived from one handshake.
// Once a session is established the keys are immutable for its lifetime.
type SessionKeys struct {
	// EncKey keys the record layer AEAD (32 bytes)
	EncKey []byte

	// MACKey keys the handshake transcript MAC (32 bytes)
	MACKey []byte

	// IV seeds the record layer nonces (16 bytes)
	IV []byte
}

// DeriveSessionKeys derives the session keys from a KEM shared secret and
// both handshake nonces. The raw shared secret is not retained; callers
// should zeroize it after derivation.
func DeriveSessionKeys(sharedSecret, clientNonce, serverNonce []byte) (*SessionKeys, error) {
	if len(sharedSecret) == 0 {
		return nil, qerrors.NewCryptoError("DeriveSessionKeys", qerrors.ErrInvalidKeySize)
	}
	if len(clientNonce) != constants.NonceSize || len(serverNonce) != constants.NonceSize {
		return nil, qerrors.NewCryptoError("DeriveSessionKeys", qerrors.ErrInvalidKeySize)
	}

	encKey, err := expand(sharedSecret, constants.LabelEncryption, clientNonce, serverNonce, constants.EncKeySize)
	if err != nil {
		return nil, err
	}
	macKey, err := expand(sharedSecret, constants.LabelMAC, clientNonce, serverNonce, constants.MACKeySize)
	if err != nil {
		return nil, err
	}
	iv, err := expand(sharedSecret, constants.LabelIV, clientNonce, serverNonce, constants.IVSize)
	if err != nil {
		return nil, err
	}

	return &SessionKeys{EncKey: encKey, MACKey: macKey, IV: iv}, nil
}

// expand runs one labeled HKDF expansion over the shared secret.
func expand(secret []byte, label string, clientNonce, serverNonce []byte, n int) ([]byte, error) {
	info := make([]byte, 0, len(constants.ProtocolName)+1+len(label)+2*constants.NonceSize)
	info = append(info, constants.ProtocolName...)
	info = append(info, ' ')
	info = append(info, label...)
	info = append(info, clientNonce...)
	info = append(info, serverNonce...)

	r := hkdf.New(sha256.New, secret, []byte(constants.KDFSalt), info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, qerrors.NewCryptoError("DeriveSessionKeys", err)
	}
	return out, nil
}

// Zeroize overwrites all key material with zeros.
func (k *SessionKeys) Zeroize() {
	if k == nil {
		return
	}
	ZeroizeMultiple(k.EncKey, k.MACKey, k.IV)
}
