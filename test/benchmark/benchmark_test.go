// Package benchmark provides performance benchmarks for the KEMTLS channel
// library.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./test/benchmark/
//
// For profiling:
//
//	go test -bench=. -cpuprofile=cpu.prof -memprofile=mem.prof ./test/benchmark/
package benchmark

import (
	"testing"

	"github.com/pq-oidc/kemtls-go/internal/constants"
	"github.com/pq-oidc/kemtls-go/pkg/cert"
	"github.com/pq-oidc/kemtls-go/pkg/crypto"
	"github.com/pq-oidc/kemtls-go/pkg/handshake"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
	"github.com/pq-oidc/kemtls-go/pkg/protocol"
)

// --- Cryptographic Primitive Benchmarks ---

func BenchmarkSecureRandom32(b *testing.B) {
	buf := make([]byte, 32)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = crypto.SecureRandom(buf)
	}
}

// --- ML-KEM-768 Benchmarks ---

func BenchmarkMLKEMKeyGeneration(b *testing.B) {
	kem := pqc.NewMLKEM768()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := kem.GenerateKeyPair(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMLKEMEncapsulation(b *testing.B) {
	kem := pqc.NewMLKEM768()
	keys, _ := kem.GenerateKeyPair()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := kem.Encapsulate(keys.Public); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMLKEMDecapsulation(b *testing.B) {
	kem := pqc.NewMLKEM768()
	keys, _ := kem.GenerateKeyPair()
	ciphertext, _, _ := kem.Encapsulate(keys.Public)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := kem.Decapsulate(keys.Private, ciphertext); err != nil {
			b.Fatal(err)
		}
	}
}

// --- ML-DSA-44 Benchmarks ---

func BenchmarkMLDSASign(b *testing.B) {
	sig := pqc.NewMLDSA44()
	keys, _ := sig.GenerateKeyPair()
	msg := make([]byte, 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sig.Sign(keys.Private, msg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMLDSAVerify(b *testing.B) {
	sig := pqc.NewMLDSA44()
	keys, _ := sig.GenerateKeyPair()
	msg := make([]byte, 256)
	signature, _ := sig.Sign(keys.Private, msg)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !sig.Verify(keys.Public, msg, signature) {
			b.Fatal("verify failed")
		}
	}
}

// --- Key Schedule Benchmarks ---

func BenchmarkDeriveSessionKeys(b *testing.B) {
	secret := make([]byte, 32)
	clientNonce := make([]byte, constants.NonceSize)
	serverNonce := make([]byte, constants.NonceSize)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		keys, err := crypto.DeriveSessionKeys(secret, clientNonce, serverNonce)
		if err != nil {
			b.Fatal(err)
		}
		keys.Zeroize()
	}
}

// --- Certificate Benchmarks ---

func BenchmarkCertificateVerify(b *testing.B) {
	kem := pqc.NewMLKEM768()
	sig := pqc.NewMLDSA44()
	kemKeys, _ := kem.GenerateKeyPair()
	sigKeys, _ := sig.GenerateKeyPair()
	c, _ := cert.New("bench.test", kemKeys.Public, sigKeys, sig)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Verify(sig); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Record Layer Benchmarks ---

func benchmarkRecordSeal(b *testing.B, suite constants.CipherSuite, size int) {
	keys := &crypto.SessionKeys{
		EncKey: make([]byte, constants.EncKeySize),
		MACKey: make([]byte, constants.MACKeySize),
		IV:     make([]byte, constants.IVSize),
	}
	cipher, err := crypto.NewRecordCipher(suite, keys, true)
	if err != nil {
		b.Fatal(err)
	}
	payload := make([]byte, size)

	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := cipher.Seal(payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRecordSealAES1K(b *testing.B) {
	benchmarkRecordSeal(b, constants.CipherSuiteAES256GCM, 1024)
}

func BenchmarkRecordSealAES64K(b *testing.B) {
	benchmarkRecordSeal(b, constants.CipherSuiteAES256GCM, 64*1024)
}

func BenchmarkRecordSealChaCha1K(b *testing.B) {
	benchmarkRecordSeal(b, constants.CipherSuiteChaCha20Poly1305, 1024)
}

func BenchmarkRecordSealChaCha64K(b *testing.B) {
	benchmarkRecordSeal(b, constants.CipherSuiteChaCha20Poly1305, 64*1024)
}

func BenchmarkRecordRoundTrip(b *testing.B) {
	keys := &crypto.SessionKeys{
		EncKey: make([]byte, constants.EncKeySize),
		MACKey: make([]byte, constants.MACKeySize),
		IV:     make([]byte, constants.IVSize),
	}
	sender, _ := crypto.NewRecordCipher(constants.CipherSuiteAES256GCM, keys, true)
	receiver, _ := crypto.NewRecordCipher(constants.CipherSuiteAES256GCM, keys, false)
	payload := make([]byte, 1024)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seq, ciphertext, err := sender.Seal(payload)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := receiver.Open(seq, ciphertext); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Handshake Benchmarks ---

func BenchmarkFullHandshake(b *testing.B) {
	kem := pqc.NewMLKEM768()
	sig := pqc.NewMLDSA44()
	identity, err := handshake.NewIdentity("bench.test", kem, sig)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client := handshake.NewClient(kem, sig)
		server := handshake.NewServer(identity, kem, sig)

		out, err := client.Start()
		if err != nil {
			b.Fatal(err)
		}
		serverOut, err := server.Step(out[0])
		if err != nil {
			b.Fatal(err)
		}
		if _, err := client.Step(serverOut[0]); err != nil {
			b.Fatal(err)
		}
		clientOut, err := client.Step(serverOut[1])
		if err != nil {
			b.Fatal(err)
		}
		if _, err := server.Step(clientOut[0]); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Codec Benchmarks ---

func BenchmarkEncodeRecord(b *testing.B) {
	codec := protocol.NewCodec(32, 32)
	record := &protocol.Record{Sequence: 1, Ciphertext: make([]byte, 1024)}

	b.SetBytes(int64(len(record.Ciphertext)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.EncodeRecord(record); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeRecord(b *testing.B) {
	codec := protocol.NewCodec(32, 32)
	msg, _ := codec.EncodeRecord(&protocol.Record{Sequence: 1, Ciphertext: make([]byte, 1024)})

	b.SetBytes(int64(len(msg)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.DecodeRecord(msg); err != nil {
			b.Fatal(err)
		}
	}
}
