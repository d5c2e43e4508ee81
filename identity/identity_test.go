package identity

import (
	"bytes"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatal(err)
	}
	h1 := id.Hash()
	h2 := id.Hash()
	if h1 != h2 {
		t.Fatal("hash is not deterministic")
	}
	if len(h1) != HashSize {
		t.Fatalf("hash size = %d, want %d", len(h1), HashSize)
	}
}

func TestSignVerify(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("this is a test")
	sig := id.Sign(msg)
	if !id.ValidateSignature(msg, sig) {
		t.Fatal("verification failed")
	}
	if id.ValidateSignature([]byte("this is a tamper"), sig) {
		t.Fatal("verification succeeded on tampered message")
	}
}

func TestPublicRoundTrip(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatal(err)
	}
	pub, err := FromPublicBytes(id.PublicBytes())
	if err != nil {
		t.Fatal(err)
	}
	if pub.Hash() != id.Hash() {
		t.Fatal("public-only identity hash mismatch")
	}
	msg := []byte("hello")
	sig := id.Sign(msg)
	if !pub.ValidateSignature(msg, sig) {
		t.Fatal("public-only identity failed to verify a valid signature")
	}
}

func TestPrivateRoundTrip(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatal(err)
	}
	b := id.ToPrivateBytes()
	id2, err := FromPrivateBytes(b)
	if err != nil {
		t.Fatal(err)
	}
	if id2.Hash() != id.Hash() {
		t.Fatal("round-tripped identity hash mismatch")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sender, _ := New()
	recipient, _ := New()
	msg := []byte("the quick brown fox jumps over the lazy dog")
	ct, err := sender.Encrypt(recipient, msg)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := recipient.Decrypt(ct)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatal("decrypted plaintext does not match original")
	}
}

func TestDecryptWrongRecipientFails(t *testing.T) {
	sender, _ := New()
	recipient, _ := New()
	other, _ := New()
	ct, err := sender.Encrypt(recipient, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Decrypt(ct); err == nil {
		t.Fatal("expected decryption under the wrong identity to fail")
	}
}
