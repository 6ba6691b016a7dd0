package cert

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"

	"github.com/pq-oidc/kemtls-go/internal/constants"
	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
)

// mockSignature is a deterministic stand-in for ML-DSA used to test the
// certificate model without the cost of lattice operations. The private and
// public keys are the same 32 bytes and a "signature" is a keyed hash of the
// message, so a flipped bit anywhere breaks verification just like the real
// scheme.
type mockSignature struct{}

const (
	mockSigPublicKeySize = 32
	mockSigSize          = 64
)

func (mockSignature) Name() string { return "mock-sig" }

func (mockSignature) GenerateKeyPair() (*pqc.SignatureKeyPair, error) {
	key := make([]byte, mockSigPublicKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return &pqc.SignatureKeyPair{Public: key, Private: key}, nil
}

func (mockSignature) Sign(private, msg []byte) ([]byte, error) {
	h := sha256.Sum256(append(append([]byte{}, private...), msg...))
	sig := make([]byte, mockSigSize)
	copy(sig, h[:])
	copy(sig[32:], h[:])
	return sig, nil
}

func (m mockSignature) Verify(public, msg, sig []byte) bool {
	if len(public) != mockSigPublicKeySize || len(sig) != mockSigSize {
		return false
	}
	want, _ := m.Sign(public, msg)
	return bytes.Equal(want, sig)
}

func (mockSignature) PublicKeySize() int { return mockSigPublicKeySize }
func (mockSignature) SignatureSize() int { return mockSigSize }

func newTestCertificate(t *testing.T, subject string) (*Certificate, pqc.Signature) {
	t.Helper()
	sig := mockSignature{}
	keys, err := sig.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	kemPublic := make([]byte, 64)
	if _, err := rand.Read(kemPublic); err != nil {
		t.Fatalf("rand: %v", err)
	}
	c, err := New(subject, kemPublic, keys, sig)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, sig
}

func TestNewAndVerify(t *testing.T) {
	c, sig := newTestCertificate(t, "server.example.com")

	if err := c.Verify(sig); err != nil {
		t.Errorf("fresh certificate must verify: %v", err)
	}
	if c.Subject != "server.example.com" {
		t.Errorf("Subject = %q", c.Subject)
	}
	if len(c.Signature) != sig.SignatureSize() {
		t.Errorf("signature length = %d, want %d", len(c.Signature), sig.SignatureSize())
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	sig := mockSignature{}
	keys, _ := sig.GenerateKeyPair()
	kemPublic := make([]byte, 64)

	if _, err := New("", kemPublic, keys, sig); !errors.Is(err, qerrors.ErrInvalidCertificate) {
		t.Errorf("empty subject: err = %v, want ErrInvalidCertificate", err)
	}
	long := strings.Repeat("a", constants.MaxSubjectSize+1)
	if _, err := New(long, kemPublic, keys, sig); !errors.Is(err, qerrors.ErrInvalidCertificate) {
		t.Errorf("oversized subject: err = %v, want ErrInvalidCertificate", err)
	}
	if _, err := New("s", nil, keys, sig); !errors.Is(err, qerrors.ErrInvalidPublicKey) {
		t.Errorf("empty KEM key: err = %v, want ErrInvalidPublicKey", err)
	}
	short := &pqc.SignatureKeyPair{Public: keys.Public[:8], Private: keys.Private}
	if _, err := New("s", kemPublic, short, sig); !errors.Is(err, qerrors.ErrInvalidPublicKey) {
		t.Errorf("short verify key: err = %v, want ErrInvalidPublicKey", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	fields := []struct {
		name   string
		mutate func(*Certificate)
	}{
		{"subject", func(c *Certificate) { c.Subject = "evil.example.com" }},
		{"kem key", func(c *Certificate) { c.KEMPublicKey[0] ^= 0x01 }},
		{"signature", func(c *Certificate) { c.Signature[5] ^= 0x01 }},
	}

	for _, tc := range fields {
		c, sig := newTestCertificate(t, "server.example.com")
		tc.mutate(c)
		if err := c.Verify(sig); !errors.Is(err, qerrors.ErrAuthenticationFailed) {
			t.Errorf("tampered %s: err = %v, want ErrAuthenticationFailed", tc.name, err)
		}
	}

	// A swapped verification key changes structural validity or the
	// signature binding, never passes.
	c, sig := newTestCertificate(t, "server.example.com")
	other, _ := sig.GenerateKeyPair()
	c.SigPublicKey = other.Public
	if err := c.Verify(sig); err == nil {
		t.Error("swapped verification key must not verify")
	}
}

func TestVerifyStructuralChecks(t *testing.T) {
	c, sig := newTestCertificate(t, "server.example.com")

	c.Signature = c.Signature[:16]
	if err := c.Verify(sig); !errors.Is(err, qerrors.ErrInvalidCertificate) {
		t.Errorf("truncated signature: err = %v, want ErrInvalidCertificate", err)
	}

	c2, _ := newTestCertificate(t, "server.example.com")
	c2.Subject = ""
	if err := c2.Verify(sig); !errors.Is(err, qerrors.ErrInvalidCertificate) {
		t.Errorf("empty subject: err = %v, want ErrInvalidCertificate", err)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	c, sig := newTestCertificate(t, "server.example.com")

	data := c.Marshal()
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if out.Subject != c.Subject {
		t.Errorf("Subject = %q, want %q", out.Subject, c.Subject)
	}
	if !bytes.Equal(out.KEMPublicKey, c.KEMPublicKey) {
		t.Error("KEM public key corrupted")
	}
	if !bytes.Equal(out.SigPublicKey, c.SigPublicKey) {
		t.Error("verification key corrupted")
	}
	if !bytes.Equal(out.Signature, c.Signature) {
		t.Error("signature corrupted")
	}
	if err := out.Verify(sig); err != nil {
		t.Errorf("round-tripped certificate must verify: %v", err)
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	c, _ := newTestCertificate(t, "server.example.com")
	data := c.Marshal()

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated prefix", data[:3]},
		{"truncated field", data[:len(data)-5]},
		{"trailing data", append(append([]byte{}, data...), 0x00)},
	}
	for _, tc := range cases {
		if _, err := Unmarshal(tc.data); !errors.Is(err, qerrors.ErrInvalidCertificate) {
			t.Errorf("%s: err = %v, want ErrInvalidCertificate", tc.name, err)
		}
	}

	// Declared field length exceeding remaining input is bounded, not
	// allocated.
	huge := make([]byte, 8)
	huge[0] = 0xFF
	huge[1] = 0xFF
	huge[2] = 0xFF
	huge[3] = 0xFF
	if _, err := Unmarshal(huge); !errors.Is(err, qerrors.ErrInvalidCertificate) {
		t.Errorf("huge length: err = %v, want ErrInvalidCertificate", err)
	}
}

func TestUnmarshalSubjectBounds(t *testing.T) {
	c, _ := newTestCertificate(t, "server.example.com")
	c.Subject = strings.Repeat("a", constants.MaxSubjectSize+1)
	if _, err := Unmarshal(c.Marshal()); !errors.Is(err, qerrors.ErrInvalidCertificate) {
		t.Errorf("oversized subject: err = %v, want ErrInvalidCertificate", err)
	}
}

func TestFingerprint(t *testing.T) {
	c, _ := newTestCertificate(t, "server.example.com")

	fp1 := c.Fingerprint()
	fp2 := c.Fingerprint()
	if fp1 != fp2 {
		t.Error("fingerprint must be deterministic")
	}

	other, _ := newTestCertificate(t, "other.example.com")
	if c.Fingerprint() == other.Fingerprint() {
		t.Error("distinct certificates must have distinct fingerprints")
	}

	c.Subject = "changed"
	if c.Fingerprint() == fp1 {
		t.Error("fingerprint must change with contents")
	}
}
