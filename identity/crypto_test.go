package identity

import (
	"bytes"
	crand "crypto/rand"
	"testing"
)

func testKeys(t *testing.T) (aesKey, hmacKey []byte) {
	aesKey = make([]byte, aesKeySize)
	hmacKey = make([]byte, hmacKeySize)
	if _, err := crand.Read(aesKey); err != nil {
		t.Fatal(err)
	}
	if _, err := crand.Read(hmacKey); err != nil {
		t.Fatal(err)
	}
	return
}

func TestTokenRoundTrip(t *testing.T) {
	aesKey, hmacKey := testKeys(t)
	plaintext := []byte("a message of moderate length, spanning more than one AES block")
	token, err := encryptToken(aesKey, hmacKey, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	got, err := decryptToken(aesKey, hmacKey, token)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("token round trip mismatch")
	}
}

func TestTokenEmptyPlaintext(t *testing.T) {
	aesKey, hmacKey := testKeys(t)
	token, err := encryptToken(aesKey, hmacKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := decryptToken(aesKey, hmacKey, token)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty plaintext, got %d bytes", len(got))
	}
}

func TestTokenCiphertextBitFlipFails(t *testing.T) {
	aesKey, hmacKey := testKeys(t)
	token, err := encryptToken(aesKey, hmacKey, []byte("flip a bit in me"))
	if err != nil {
		t.Fatal(err)
	}
	token[aesBlockSize] ^= 0x01 // flip a bit inside the ciphertext region
	if _, err := decryptToken(aesKey, hmacKey, token); err != ErrTokenAuthFailed {
		t.Fatalf("expected ErrTokenAuthFailed, got %v", err)
	}
}

func TestTokenHMACBitFlipFails(t *testing.T) {
	aesKey, hmacKey := testKeys(t)
	token, err := encryptToken(aesKey, hmacKey, []byte("flip the mac"))
	if err != nil {
		t.Fatal(err)
	}
	token[len(token)-1] ^= 0x01
	if _, err := decryptToken(aesKey, hmacKey, token); err != ErrTokenAuthFailed {
		t.Fatalf("expected ErrTokenAuthFailed, got %v", err)
	}
}

func TestPKCS7PadUnpad(t *testing.T) {
	for n := 0; n < 64; n++ {
		data := make([]byte, n)
		crand.Read(data)
		padded := pkcs7Pad(data, aesBlockSize)
		if len(padded)%aesBlockSize != 0 {
			t.Fatalf("padded length %d not a multiple of block size", len(padded))
		}
		unpadded, err := pkcs7Unpad(padded, aesBlockSize)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(unpadded, data) {
			t.Fatalf("pad/unpad mismatch for length %d", n)
		}
	}
}

func TestDeriveTokenKeysDeterministic(t *testing.T) {
	shared := make([]byte, 32)
	crand.Read(shared)
	var salt Hash
	crand.Read(salt[:])
	a1, h1, err := deriveTokenKeys(shared, salt)
	if err != nil {
		t.Fatal(err)
	}
	a2, h2, err := deriveTokenKeys(shared, salt)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a1, a2) || !bytes.Equal(h1, h2) {
		t.Fatal("HKDF derivation is not deterministic for identical inputs")
	}
}
