// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestParsePayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		wantErr error
		wantTS  int64
	}{
		{"string timestamp", `{"u":"alice","p":"secret123","t":"1700000000","r":"a1b2c3"}`, nil, 1700000000},
		{"integer timestamp", `{"u":"alice","p":"secret123","t":1700000000,"r":"a1b2c3"}`, nil, 1700000000},
		{"leading whitespace", " \n{\"u\":\"a\",\"p\":\"b\",\"t\":\"1\",\"r\":\"c\"}", nil, 1},
		{"extra fields ignored", `{"u":"a","p":"b","t":"1","r":"c","x":true}`, nil, 1},
		{"missing r", `{"u":"alice","p":"x","t":"123"}`, ErrPayloadShape, 0},
		{"missing u", `{"p":"x","t":"123","r":"c"}`, ErrPayloadShape, 0},
		{"null p", `{"u":"a","p":null,"t":"123","r":"c"}`, ErrPayloadShape, 0},
		{"numeric u", `{"u":5,"p":"x","t":"123","r":"c"}`, ErrPayloadShape, 0},
		{"fractional t", `{"u":"a","p":"x","t":"12.5","r":"c"}`, ErrPayloadShape, 0},
		{"word t", `{"u":"a","p":"x","t":"yesterday","r":"c"}`, ErrPayloadShape, 0},
		{"array", `["u","p"]`, ErrPayloadNotObject, 0},
		{"garbage", "\x01\x02binary", ErrPayloadNotObject, 0},
		{"empty", "", ErrPayloadNotObject, 0},
		{"truncated object", `{"u":"a"`, ErrPayloadNotObject, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParsePayload() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePayload() unexpected error: %v", err)
			}
			if p.Timestamp != tt.wantTS {
				t.Errorf("Timestamp = %d, want %d", p.Timestamp, tt.wantTS)
			}
		})
	}
}

func TestTokenPayload_MarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(TokenPayload{Username: "alice", Password: "pw", Timestamp: 42, Nonce: "r1"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"t":"42"`) {
		t.Errorf("timestamp should be a decimal string, got %s", b)
	}
	p, err := ParsePayload(b)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Username != "alice" || p.Password != "pw" || p.Nonce != "r1" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestMintToken(t *testing.T) {
	t.Parallel()

	codec := NewAESCodec()
	key := testKey("0123456789abcdef")
	at := time.Unix(1700000000, 0)

	a, err := MintToken(codec, key, "alice", "secret123", at)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	b, _ := MintToken(codec, key, "alice", "secret123", at)
	if a == b {
		t.Error("tokens minted for the same credentials should differ")
	}

	plain, err := DecryptString(codec, a, key)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	p, err := ParsePayload(plain)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Username != "alice" || !p.IssuedAt().Equal(at) || len(p.Nonce) != 32 {
		t.Errorf("unexpected payload %+v", p)
	}
}
