// mac.go implements the handshake transcript MAC.
//
// The transcript MAC is HMAC-SHA256 keyed with mac_key over the ordered
// concatenation of the serialized bytes of every handshake message exchanged
// so far. It binds both parties to one identical, untampered message
// sequence: a single bit flip in any prior message changes the MAC and the
// receiver fails the handshake.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// TranscriptMAC computes the keyed MAC over the handshake transcript bytes.
func TranscriptMAC(macKey, transcript []byte) []byte {
	h := hmac.New(sha256.New, macKey)
	h.Write(transcript)
	return h.Sum(nil)
}

// VerifyTranscriptMAC checks a received transcript MAC in constant time.
func VerifyTranscriptMAC(macKey, transcript, mac []byte) bool {
	expected := TranscriptMAC(macKey, transcript)
	return hmac.Equal(expected, mac)
}
