// Package constants defines protocol constants and security parameters for
// the KEMTLS handshake engine.
//
// The trust model is a single self-signed certificate per server with no
// chain validation; it is suitable for research and demonstration use, not
// for production PKI deployments.
package constants

// Protocol identification
const (
	// ProtocolName is used for domain separation in key derivation
	ProtocolName = "kemtls v1"

	// KDFSalt is the HKDF salt for the session key schedule
	KDFSalt = "KEMTLS-Session-Keys"
)

// Key schedule labels. Each derived key uses a distinct label so the
// outputs are independent even though they share one shared secret.
const (
	LabelEncryption = "enc"
	LabelMAC        = "mac"
	LabelIV         = "iv"
)

// Session key sizes
const (
	// EncKeySize is the size of the record encryption key in bytes
	EncKeySize = 32

	// MACKeySize is the size of the transcript MAC key in bytes
	MACKeySize = 32

	// IVSize is the size of the record layer IV in bytes
	IVSize = 16

	// NonceSize is the size of handshake nonces in bytes
	NonceSize = 32

	// TranscriptMACSize is the size of the Finished transcript MAC in bytes
	TranscriptMACSize = 32
)

// ML-KEM-768 parameters (NIST FIPS 203)
const (
	// MLKEMPublicKeySize is the size of an ML-KEM-768 encapsulation key in bytes
	MLKEMPublicKeySize = 1184

	// MLKEMCiphertextSize is the size of an ML-KEM-768 ciphertext in bytes
	MLKEMCiphertextSize = 1088

	// MLKEMSharedSecretSize is the size of the ML-KEM shared secret in bytes
	MLKEMSharedSecretSize = 32
)

// ML-DSA-44 parameters (NIST FIPS 204)
const (
	// MLDSAPublicKeySize is the size of an ML-DSA-44 verification key in bytes
	MLDSAPublicKeySize = 1312

	// MLDSASignatureSize is the size of an ML-DSA-44 signature in bytes
	MLDSASignatureSize = 2420
)

// AEAD parameters
const (
	// AEADKeySize is the key size for both supported AEAD suites in bytes
	AEADKeySize = 32

	// AEADNonceSize is the nonce size for both supported AEAD suites in bytes
	AEADNonceSize = 12

	// AEADTagSize is the authentication tag size in bytes
	AEADTagSize = 16
)

// Message size limits
const (
	// MaxMessageSize bounds the declared payload length of any wire message.
	// Decoding rejects larger declarations before allocating, so untrusted
	// input cannot force unbounded allocation.
	MaxMessageSize = 1 << 20

	// MaxSubjectSize bounds the certificate subject field
	MaxSubjectSize = 256

	// MaxRecordPayloadSize is the largest plaintext a single record may carry
	MaxRecordPayloadSize = MaxMessageSize - 64
)

// Record layer limits
const (
	// MaxRecordsPerDirection caps the per-direction sequence counter well
	// below the nonce space so a counter wrap is unreachable.
	MaxRecordsPerDirection = 1 << 48
)

// CipherSuite identifies the record layer AEAD algorithm.
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM for record encryption
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 uses ChaCha20-Poly1305 for record encryption
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite.
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported.
func (cs CipherSuite) IsSupported() bool {
	return cs == CipherSuiteAES256GCM || cs == CipherSuiteChaCha20Poly1305
}
