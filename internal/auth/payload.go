// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Payload errors
var (
	// ErrPayloadNotObject indicates the decrypted bytes are not a JSON object.
	ErrPayloadNotObject = errors.New("payload is not a JSON object")

	// ErrPayloadShape indicates a missing or mistyped u, p, t or r field.
	ErrPayloadShape = errors.New("payload is not well formatted")
)

// TokenPayload is the decrypted credential bundle.
type TokenPayload struct {
	Username  string // u
	Password  string // p
	Timestamp int64  // t, unix seconds
	Nonce     string // r
}

// IssuedAt returns t as a time.
func (p *TokenPayload) IssuedAt() time.Time {
	return time.Unix(p.Timestamp, 0)
}

type wirePayload struct {
	U string `json:"u"`
	P string `json:"p"`
	T string `json:"t"`
	R string `json:"r"`
}

// MarshalJSON writes the canonical wire form with t as a decimal string.
func (p TokenPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePayload{
		U: p.Username,
		P: p.Password,
		T: strconv.FormatInt(p.Timestamp, 10),
		R: p.Nonce,
	})
}

// ParsePayload decodes a decrypted token. All of u, p, t and r must be
// present and non-null. t may be a decimal string or a JSON integer.
func ParsePayload(b []byte) (*TokenPayload, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrPayloadNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadNotObject, err)
	}

	var p TokenPayload
	var err error
	if p.Username, err = stringField(fields, "u"); err != nil {
		return nil, err
	}
	if p.Password, err = stringField(fields, "p"); err != nil {
		return nil, err
	}
	if p.Timestamp, err = timestampField(fields, "t"); err != nil {
		return nil, err
	}
	if p.Nonce, err = stringField(fields, "r"); err != nil {
		return nil, err
	}
	return &p, nil
}

func rawField(fields map[string]json.RawMessage, name string) (json.RawMessage, error) {
	raw, ok := fields[name]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: missing %q", ErrPayloadShape, name)
	}
	return raw, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, err := rawField(fields, name)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", ErrPayloadShape, name)
	}
	return s, nil
}

func timestampField(fields map[string]json.RawMessage, name string) (int64, error) {
	raw, err := rawField(fields, name)
	if err != nil {
		return 0, err
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%w: %q is not a string", ErrPayloadShape, name)
		}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a unix timestamp", ErrPayloadShape, name)
	}
	return n, nil
}

// NewNonce returns 16 random bytes as hex, for the r field.
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// MintToken builds a payload for username/password issued at t, encrypts it
// with key and returns the token text. Clients and tests use it; the server
// never mints tokens.
func MintToken(c Codec, key *Key, username, password string, at time.Time) (string, error) {
	nonce, err := NewNonce()
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(TokenPayload{
		Username:  username,
		Password:  password,
		Timestamp: at.Unix(),
		Nonce:     nonce,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return EncryptToString(c, body, key)
}
