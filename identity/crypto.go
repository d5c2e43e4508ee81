package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	aesKeySize   = 32 // AES-256
	aesBlockSize = aes.BlockSize
	hmacKeySize  = 32
	hmacSize     = 32 // HMAC-SHA256
)

// ErrMalformedToken is returned when a token is too short to contain its
// fixed-size fields.
var ErrMalformedToken = errors.New("identity: malformed token")

// ErrTokenAuthFailed is returned when a token's HMAC does not verify: any
// bit flip in the ciphertext or HMAC must cause this.
var ErrTokenAuthFailed = errors.New("identity: token authentication failed")

// deriveTokenKeys runs HKDF-SHA256 over an ECDH shared secret, salted by the
// recipient's identity hash, to produce independent AES and HMAC subkeys.
// This is the same derive-then-split pattern DeriveLinkKeys uses for link
// session keys, salted by the link_id instead.
func deriveTokenKeys(sharedSecret []byte, salt Hash) (aesKey, hmacKey []byte, err error) {
	r := hkdf.New(sha256.New, sharedSecret, salt[:], []byte("reticulum-token"))
	out := make([]byte, aesKeySize+hmacKeySize)
	if _, err = io.ReadFull(r, out); err != nil {
		return nil, nil, err
	}
	return out[:aesKeySize], out[aesKeySize:], nil
}

// DeriveLinkKeys runs HKDF-SHA256 over a link's ECDH shared secret, salted
// by the link_id, producing independent AES and HMAC subkeys for the
// post-handshake encrypted-token construction.
func DeriveLinkKeys(sharedSecret, linkID []byte) (aesKey, hmacKey []byte, err error) {
	r := hkdf.New(sha256.New, sharedSecret, linkID, []byte("reticulum-link"))
	out := make([]byte, aesKeySize+hmacKeySize)
	if _, err = io.ReadFull(r, out); err != nil {
		return nil, nil, err
	}
	return out[:aesKeySize], out[aesKeySize:], nil
}

// pkcs7Pad pads data to a multiple of blockSize per PKCS#7.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad strips PKCS#7 padding, validating it strictly.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("identity: invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("identity: invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("identity: invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}

// encryptToken implements the encrypted-token construction:
// IV(16) ∥ AES-256-CBC(PKCS7(plaintext)) ∥ HMAC-SHA256(IV ∥ ciphertext).
func encryptToken(aesKey, hmacKey, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aesBlockSize)
	if _, err := crand.Read(iv); err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aesBlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := newTokenHMAC(hmacKey, iv, ciphertext)

	out := make([]byte, 0, len(iv)+len(ciphertext)+hmacSize)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, mac...)
	return out, nil
}

// decryptToken reverses encryptToken, verifying the HMAC before touching
// the ciphertext: any bit flip must fail decryption.
func decryptToken(aesKey, hmacKey, token []byte) ([]byte, error) {
	if len(token) < aesBlockSize+hmacSize {
		return nil, ErrMalformedToken
	}
	iv := token[:aesBlockSize]
	ciphertext := token[aesBlockSize : len(token)-hmacSize]
	wantMAC := token[len(token)-hmacSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aesBlockSize != 0 {
		return nil, ErrMalformedToken
	}

	gotMAC := newTokenHMAC(hmacKey, iv, ciphertext)
	if !hmac.Equal(gotMAC, wantMAC) {
		return nil, ErrTokenAuthFailed
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, err
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)
	return pkcs7Unpad(padded, aesBlockSize)
}

// EncryptWithKeys applies the same encrypted-token construction as Encrypt
// (IV ∥ AES-256-CBC ∥ HMAC) but under an already-derived key pair, for
// callers such as the link package that derive a session key once per
// session (via DeriveLinkKeys) rather than per message.
func EncryptWithKeys(aesKey, hmacKey, plaintext []byte) ([]byte, error) {
	return encryptToken(aesKey, hmacKey, plaintext)
}

// DecryptWithKeys reverses EncryptWithKeys.
func DecryptWithKeys(aesKey, hmacKey, token []byte) ([]byte, error) {
	return decryptToken(aesKey, hmacKey, token)
}

func newTokenHMAC(hmacKey, iv, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, hmacKey)
	h.Write(iv)
	h.Write(ciphertext)
	return h.Sum(nil)
}
