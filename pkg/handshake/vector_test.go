package handshake

// Known-answer vectors for the handshake message encodings and the key
// schedule. The vectors were precomputed from the mock capabilities with
// fixed keys and nonces; they pin the exact wire bytes of every handshake
// message and the derived session keys, so any change to the framing, the
// certificate encoding, the key schedule, or the transcript MAC boundaries
// shows up as a vector mismatch.

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/pq-oidc/kemtls-go/pkg/cert"
	"github.com/pq-oidc/kemtls-go/pkg/crypto"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
	"github.com/pq-oidc/kemtls-go/pkg/protocol"
)

const (
	vectorClientHello = "0100000040" +
		"1111111111111111111111111111111111111111111111111111111111111111" +
		"2222222222222222222222222222222222222222222222222222222222222222"

	vectorServerHello = "02000000db" +
		"eb2552259193a3eb1d2ac1653652b25b61a20efc6a02d2ccbd67c6fcf5a8e69c" +
		"3333333333333333333333333333333333333333333333333333333333333333" +
		"0000000b766563746f722e74657374" +
		"000000205555555555555555555555555555555555555555555555555555555555555555" +
		"000000204444444444444444444444444444444444444444444444444444444444444444" +
		"00000040" +
		"4f21c3358a269fa55e4a6c0388ec0ec03c13781cb4af9238d13082385217ab20" +
		"4f21c3358a269fa55e4a6c0388ec0ec03c13781cb4af9238d13082385217ab20"

	vectorServerFinished = "0600000020" +
		"ed5a9a2d4804ff1ecf06a7baa15112c68fbc1b56147c8b9a9721b47c9c6ec713"

	vectorClientFinished = "0500000020" +
		"7c057daf72d56dd1316ccd1985e4eb45d22e691a5c07347f2165a0b51a3363ff"

	vectorEncKey = "b47a6c2a055f539dbd83fdda56396d7c7687f95247566faa3d32f0a18dd30dd9"
	vectorMACKey = "80a20e5c34ff74c659a9e66f6cb068e7e2966c87862a9e10e27062bb7f8bcd70"
	vectorIV     = "98e4680e883bb3b5fc40311c2c0f4a25"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad vector hex: %v", err)
	}
	return b
}

func TestHandshakeKnownAnswerVectors(t *testing.T) {
	ephPublic := bytes.Repeat([]byte{0x11}, mockKEMSize)
	clientNonce := bytes.Repeat([]byte{0x22}, 32)
	serverNonce := bytes.Repeat([]byte{0x33}, 32)
	sigKey := bytes.Repeat([]byte{0x44}, mockSigKeySize)
	serverKEMPublic := bytes.Repeat([]byte{0x55}, mockKEMSize)

	codec := protocol.NewCodec(mockKEMSize, mockKEMSize)

	clientHello, err := codec.EncodeClientHello(&protocol.ClientHello{
		KEMPublicKey: ephPublic,
		ClientNonce:  clientNonce,
	})
	if err != nil {
		t.Fatalf("EncodeClientHello: %v", err)
	}
	if !bytes.Equal(clientHello, mustHex(t, vectorClientHello)) {
		t.Errorf("ClientHello bytes = %x, want %s", clientHello, vectorClientHello)
	}

	certificate, err := cert.New("vector.test", serverKEMPublic,
		&pqc.SignatureKeyPair{Public: sigKey, Private: sigKey}, mockSignature{})
	if err != nil {
		t.Fatalf("cert.New: %v", err)
	}

	ciphertext, sharedSecret, err := mockKEM{}.Encapsulate(ephPublic)
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}

	serverHello, err := codec.EncodeServerHello(&protocol.ServerHello{
		KEMCiphertext: ciphertext,
		ServerNonce:   serverNonce,
		Certificate:   certificate.Marshal(),
	})
	if err != nil {
		t.Fatalf("EncodeServerHello: %v", err)
	}
	if !bytes.Equal(serverHello, mustHex(t, vectorServerHello)) {
		t.Errorf("ServerHello bytes = %x, want %s", serverHello, vectorServerHello)
	}

	keys, err := crypto.DeriveSessionKeys(sharedSecret, clientNonce, serverNonce)
	if err != nil {
		t.Fatalf("DeriveSessionKeys: %v", err)
	}
	if !bytes.Equal(keys.EncKey, mustHex(t, vectorEncKey)) {
		t.Errorf("EncKey = %x, want %s", keys.EncKey, vectorEncKey)
	}
	if !bytes.Equal(keys.MACKey, mustHex(t, vectorMACKey)) {
		t.Errorf("MACKey = %x, want %s", keys.MACKey, vectorMACKey)
	}
	if !bytes.Equal(keys.IV, mustHex(t, vectorIV)) {
		t.Errorf("IV = %x, want %s", keys.IV, vectorIV)
	}

	// ServerFinished MACs the transcript through ServerHello.
	transcript := append(append([]byte{}, clientHello...), serverHello...)
	serverFinished, err := codec.EncodeFinished(protocol.MessageTypeServerFinished, &protocol.Finished{
		MAC: crypto.TranscriptMAC(keys.MACKey, transcript),
	})
	if err != nil {
		t.Fatalf("EncodeFinished(server): %v", err)
	}
	if !bytes.Equal(serverFinished, mustHex(t, vectorServerFinished)) {
		t.Errorf("ServerFinished bytes = %x, want %s", serverFinished, vectorServerFinished)
	}

	// ClientFinished MACs the transcript through ServerFinished.
	transcript = append(transcript, serverFinished...)
	clientFinished, err := codec.EncodeFinished(protocol.MessageTypeClientFinished, &protocol.Finished{
		MAC: crypto.TranscriptMAC(keys.MACKey, transcript),
	})
	if err != nil {
		t.Fatalf("EncodeFinished(client): %v", err)
	}
	if !bytes.Equal(clientFinished, mustHex(t, vectorClientFinished)) {
		t.Errorf("ClientFinished bytes = %x, want %s", clientFinished, vectorClientFinished)
	}
}

// TestVectorMessagesDriveServer replays the fixed ClientHello against a
// server built from the same fixed identity keys. The server's outgoing
// messages differ only in its randomly drawn nonce, so the test verifies the
// deterministic fields rather than exact bytes.
func TestVectorMessagesDriveServer(t *testing.T) {
	sigKey := bytes.Repeat([]byte{0x44}, mockSigKeySize)
	serverKEMPublic := bytes.Repeat([]byte{0x55}, mockKEMSize)

	certificate, err := cert.New("vector.test", serverKEMPublic,
		&pqc.SignatureKeyPair{Public: sigKey, Private: sigKey}, mockSignature{})
	if err != nil {
		t.Fatalf("cert.New: %v", err)
	}
	identity := &Identity{
		Certificate: certificate,
		KEMKeys:     &pqc.KEMKeyPair{Public: serverKEMPublic, Private: serverKEMPublic},
		certBytes:   certificate.Marshal(),
	}

	server := NewServer(identity, mockKEM{}, mockSignature{})
	out, err := server.Step(mustHex(t, vectorClientHello))
	if err != nil {
		t.Fatalf("server Step(ClientHello): %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("server produced %d messages, want 2", len(out))
	}

	hello, err := protocol.NewCodec(mockKEMSize, mockKEMSize).DecodeServerHello(out[0])
	if err != nil {
		t.Fatalf("DecodeServerHello: %v", err)
	}
	want, _, err := mockKEM{}.Encapsulate(bytes.Repeat([]byte{0x11}, mockKEMSize))
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}
	if !bytes.Equal(hello.KEMCiphertext, want) {
		t.Errorf("server ciphertext = %x, want %x", hello.KEMCiphertext, want)
	}
	if !bytes.Equal(hello.Certificate, certificate.Marshal()) {
		t.Error("server certificate bytes differ from identity certificate")
	}
}
