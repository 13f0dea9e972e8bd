// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Codec errors
var (
	// ErrCiphertextLength indicates the ciphertext is not IV plus whole blocks.
	ErrCiphertextLength = errors.New("ciphertext length is invalid")

	// ErrBadPadding indicates a PKCS#7 padding violation, usually a wrong key.
	ErrBadPadding = errors.New("invalid padding")

	// ErrTokenEncoding indicates the token text is not base64.
	ErrTokenEncoding = errors.New("token is not valid base64")
)

// Codec encrypts and decrypts token payloads with a modality key.
type Codec interface {
	Encrypt(plaintext []byte, key *Key) ([]byte, error)
	Decrypt(ciphertext []byte, key *Key) ([]byte, error)
}

// AESCodec implements Codec with AES-CBC and PKCS#7 padding.
//
// The AES key is the first 32, 24 or 16 bytes of the modality secret,
// whichever is the largest the secret allows. Ciphertext layout is
// IV (16 bytes) || CBC(blocks).
type AESCodec struct {
	rand io.Reader
}

// NewAESCodec creates a codec reading IVs from crypto/rand.
func NewAESCodec() *AESCodec {
	return &AESCodec{rand: rand.Reader}
}

func (c *AESCodec) random() io.Reader {
	if c == nil || c.rand == nil {
		return rand.Reader
	}
	return c.rand
}

// aesKey picks the AES key material from a secret.
func aesKey(k *Key) ([]byte, error) {
	if k == nil {
		return nil, errors.New("key is nil")
	}
	switch n := len(k.Secret); {
	case n >= 32:
		return k.Secret[:32], nil
	case n >= 24:
		return k.Secret[:24], nil
	case n >= 16:
		return k.Secret[:16], nil
	default:
		return nil, fmt.Errorf("secret of %d bytes is too short for AES", n)
	}
}

// Encrypt pads plaintext and encrypts it under a fresh random IV.
func (c *AESCodec) Encrypt(plaintext []byte, key *Key) ([]byte, error) {
	material, err := aesKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(c.random(), iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// Decrypt reverses Encrypt. The result depends only on ciphertext and key.
func (c *AESCodec) Decrypt(ciphertext []byte, key *Key) ([]byte, error) {
	material, err := aesKey(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < 2*aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextLength
	}
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	iv := ciphertext[:aes.BlockSize]
	plain := make([]byte, len(ciphertext)-aes.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext[aes.BlockSize:])

	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, ErrBadPadding
	}
	want := bytes.Repeat([]byte{byte(n)}, n)
	if subtle.ConstantTimeCompare(b[len(b)-n:], want) != 1 {
		return nil, ErrBadPadding
	}
	return b[:len(b)-n], nil
}

// EncryptToString encrypts plaintext and encodes it as URL-safe unpadded base64.
func EncryptToString(c Codec, plaintext []byte, key *Key) (string, error) {
	ct, err := c.Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// DecryptString decodes token text and decrypts it.
func DecryptString(c Codec, token string, key *Key) ([]byte, error) {
	ct, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(ct, key)
}

// DecodeToken decodes base64 token text. Standard and URL-safe alphabets
// are accepted, padded or not. Spaces are read as '+', since form decoding
// turns an unescaped '+' into a space.
func DecodeToken(token string) ([]byte, error) {
	s := strings.TrimRight(strings.TrimSpace(strings.ReplaceAll(token, " ", "+")), "=")
	enc := base64.RawURLEncoding
	if strings.ContainsAny(s, "+/") {
		enc = base64.RawStdEncoding
	}
	b, err := enc.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenEncoding, err)
	}
	return b, nil
}
