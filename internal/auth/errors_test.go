// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", fail(ReplayedToken, StageRecorded, cause))

	if !errors.Is(err, ErrReplayedToken) {
		t.Error("expected match on kind sentinel")
	}
	if !errors.Is(err, &Error{Kind: ReplayedToken, Stage: StageRecorded}) {
		t.Error("expected match on kind and stage")
	}
	if errors.Is(err, &Error{Kind: ReplayedToken, Stage: StageNotReplayed}) {
		t.Error("did not expect match on a different stage")
	}
	if errors.Is(err, ErrExpiredToken) {
		t.Error("did not expect match on a different kind")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestKindOf_StageOf(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("ctx: %w", fail(ExpiredToken, StageFresh, nil))
	kind, ok := KindOf(err)
	if !ok || kind != ExpiredToken {
		t.Errorf("KindOf = %v, %v", kind, ok)
	}
	if StageOf(err) != StageFresh {
		t.Errorf("StageOf = %v", StageOf(err))
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf should report false for plain errors")
	}
	if StageOf(nil) != StageNone {
		t.Error("StageOf(nil) should be StageNone")
	}
}

func TestKindAndStageNames(t *testing.T) {
	t.Parallel()

	if got := CredentialMismatch.String(); got != "credential_mismatch" {
		t.Errorf("CredentialMismatch.String() = %q", got)
	}
	if got := Kind(99).String(); got != "unknown" {
		t.Errorf("out of range kind = %q", got)
	}
	if got := StageNotBlocked.String(); got != "not_blocked" {
		t.Errorf("StageNotBlocked.String() = %q", got)
	}
	if got := fail(WeakKey, StageKeyResolved, nil).Error(); got != "auth: weak_key at key_resolved" {
		t.Errorf("Error() = %q", got)
	}
}

func TestParseModalityID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    ModalityID
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"1.5", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseModalityID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseModalityID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseModalityID(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidModalityID) {
			t.Errorf("ParseModalityID(%q) error should wrap ErrInvalidModalityID", tt.in)
		}
	}
}

func TestValidateKey(t *testing.T) {
	t.Parallel()

	if err := ValidateKey(testKey("0123456789abcdef"), 16); err != nil {
		t.Errorf("16-byte key rejected: %v", err)
	}
	err := ValidateKey(testKey("0123456789abcde"), 16)
	if !errors.Is(err, ErrWeakKey) {
		t.Errorf("15-byte key: expected ErrWeakKey, got %v", err)
	}
	if !errors.Is(ValidateKey(testKey("0123456789abcdef"), 32), ErrWeakKey) {
		t.Error("configured minimum above the secret length should reject")
	}
	if !errors.Is(ValidateKey(testKey("0123456789abcde"), 4), ErrWeakKey) {
		t.Error("minimum below 16 should be raised to 16")
	}
	if !errors.Is(ValidateKey(nil, 16), ErrWeakKey) {
		t.Error("nil key should be weak")
	}
}
