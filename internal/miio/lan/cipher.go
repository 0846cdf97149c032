package lan

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" // #nosec G501 -- the device protocol derives keys with md5
	"encoding/hex"
	"fmt"
)

// tokenCipher implements the protocol's payload encryption: AES-128-CBC
// with key = md5(token) and iv = md5(key + token), PKCS#7 padding.
type tokenCipher struct {
	token []byte
	key   []byte
	iv    []byte
}

// newTokenCipher derives a cipher from a 32-character hex token.
func newTokenCipher(hexToken string) (*tokenCipher, error) {
	token, err := hex.DecodeString(hexToken)
	if err != nil {
		return nil, fmt.Errorf("token is not valid hex: %w", err)
	}
	if len(token) != 16 {
		return nil, fmt.Errorf("token must be 16 bytes, got %d", len(token))
	}

	// #nosec G401 -- protocol key derivation
	key := md5.Sum(token)
	iv := md5.Sum(append(key[:], token...)) // #nosec G401

	return &tokenCipher{token: token, key: key[:], iv: iv[:]}, nil
}

// encrypt encrypts a plaintext payload.
func (c *tokenCipher) encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}

	padLen := aes.BlockSize - len(plain)%aes.BlockSize
	padded := make([]byte, len(plain)+padLen)
	copy(padded, plain)
	for i := len(plain); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return out, nil
}

// decrypt decrypts a payload and strips the padding.
func (c *tokenCipher) decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a block multiple", len(data))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, data)

	padLen := int(out[len(out)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(out) {
		return nil, fmt.Errorf("invalid padding length %d", padLen)
	}
	for _, b := range out[len(out)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("malformed padding")
		}
	}

	// Some firmwares append trailing NULs inside the padding boundary.
	return bytes.TrimRight(out[:len(out)-padLen], "\x00"), nil
}
