// Package cert implements the self-signed certificate model used for server
// authentication.
//
// A certificate binds a subject name and the server's long-term KEM public
// key under an ML-DSA signature made with the server's own signing key.
// There is no chain, no expiry, and no revocation: validity is exactly
// "the embedded signature verifies under the embedded verification key".
// Trust in the certificate comes from the subsequent handshake proving
// possession of the KEM private key.
package cert

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/pq-oidc/kemtls-go/internal/constants"
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
)

// Certificate is a self-signed server certificate.
type Certificate struct {
	// Subject is a human-readable server identity, at most MaxSubjectSize bytes
	Subject string

	// KEMPublicKey is the server's long-term encapsulation key
	KEMPublicKey []byte

	// SigPublicKey is the verification key the Signature field is checked under
	SigPublicKey []byte

	// Signature covers the to-be-signed encoding of the three fields above
	Signature []byte
}

// New creates a self-signed certificate over the given subject and KEM public
// key, signed with sigPrivate under the given signature capability.
func New(subject string, kemPublic []byte, keys *pqc.SignatureKeyPair, sig pqc.Signature) (*Certificate, error) {
	if len(subject) == 0 || len(subject) > constants.MaxSubjectSize {
		return nil, qerrors.ErrInvalidCertificate
	}
	if len(kemPublic) == 0 {
		return nil, qerrors.ErrInvalidPublicKey
	}
	if len(keys.Public) != sig.PublicKeySize() {
		return nil, qerrors.ErrInvalidPublicKey
	}

	c := &Certificate{
		Subject:      subject,
		KEMPublicKey: kemPublic,
		SigPublicKey: keys.Public,
	}

	signature, err := sig.Sign(keys.Private, c.toBeSigned())
	if err != nil {
		return nil, qerrors.NewCryptoError("cert sign", err)
	}
	c.Signature = signature
	return c, nil
}

// Verify checks the certificate's self-signature under the given signature
// capability. A certificate that fails Verify must not be used to continue
// a handshake.
func (c *Certificate) Verify(sig pqc.Signature) error {
	if err := c.validate(sig); err != nil {
		return err
	}
	if !sig.Verify(c.SigPublicKey, c.toBeSigned(), c.Signature) {
		return qerrors.ErrAuthenticationFailed
	}
	return nil
}

func (c *Certificate) validate(sig pqc.Signature) error {
	if len(c.Subject) == 0 || len(c.Subject) > constants.MaxSubjectSize {
		return qerrors.ErrInvalidCertificate
	}
	if len(c.KEMPublicKey) == 0 {
		return qerrors.ErrInvalidCertificate
	}
	if len(c.SigPublicKey) != sig.PublicKeySize() {
		return qerrors.ErrInvalidCertificate
	}
	if len(c.Signature) != sig.SignatureSize() {
		return qerrors.ErrInvalidCertificate
	}
	return nil
}

// toBeSigned returns the deterministic encoding the self-signature covers.
// Each field is length-prefixed so no two distinct certificates can share
// an encoding.
func (c *Certificate) toBeSigned() []byte {
	return encodeFields([]byte(c.Subject), c.KEMPublicKey, c.SigPublicKey)
}

// Marshal serializes the certificate as four length-prefixed fields.
func (c *Certificate) Marshal() []byte {
	return encodeFields([]byte(c.Subject), c.KEMPublicKey, c.SigPublicKey, c.Signature)
}

// Unmarshal parses a serialized certificate. It performs structural checks
// only; call Verify before trusting the contents.
func Unmarshal(data []byte) (*Certificate, error) {
	fields, err := decodeFields(data, 4)
	if err != nil {
		return nil, err
	}

	if len(fields[0]) == 0 || len(fields[0]) > constants.MaxSubjectSize {
		return nil, qerrors.ErrInvalidCertificate
	}

	return &Certificate{
		Subject:      string(fields[0]),
		KEMPublicKey: fields[1],
		SigPublicKey: fields[2],
		Signature:    fields[3],
	}, nil
}

// Fingerprint returns the SHA3-256 digest of the serialized certificate,
// suitable for pinning and log correlation.
func (c *Certificate) Fingerprint() [32]byte {
	return sha3.Sum256(c.Marshal())
}

// encodeFields concatenates fields, each preceded by a 4-byte big-endian
// length.
func encodeFields(fields ...[]byte) []byte {
	size := 0
	for _, f := range fields {
		size += 4 + len(f)
	}

	buf := make([]byte, 0, size)
	var length [4]byte
	for _, f := range fields {
		binary.BigEndian.PutUint32(length[:], uint32(len(f)))
		buf = append(buf, length[:]...)
		buf = append(buf, f...)
	}
	return buf
}

// decodeFields parses exactly count length-prefixed fields and rejects
// trailing data. Declared lengths are bounded by the remaining input, so a
// corrupt prefix cannot force a large allocation.
func decodeFields(data []byte, count int) ([][]byte, error) {
	fields := make([][]byte, 0, count)
	offset := 0
	for i := 0; i < count; i++ {
		if len(data)-offset < 4 {
			return nil, qerrors.ErrInvalidCertificate
		}
		length := int(binary.BigEndian.Uint32(data[offset:]))
		offset += 4
		if length > len(data)-offset {
			return nil, qerrors.ErrInvalidCertificate
		}
		field := make([]byte, length)
		copy(field, data[offset:offset+length])
		fields = append(fields, field)
		offset += length
	}
	if offset != len(data) {
		return nil, qerrors.ErrInvalidCertificate
	}
	return fields, nil
}
