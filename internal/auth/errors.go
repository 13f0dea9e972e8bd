// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"errors"
	"fmt"
)

// Kind classifies a token validation failure. The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	MissingParameter
	ReplayedToken
	KeyNotFound
	WeakKey
	DecryptionFailure
	MalformedPayload
	ExpiredToken
	CredentialMismatch
	UserBlocked
	PersistenceFailure
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	MissingParameter:   "missing_parameter",
	ReplayedToken:      "replayed_token",
	KeyNotFound:        "key_not_found",
	WeakKey:            "weak_key",
	DecryptionFailure:  "decryption_failure",
	MalformedPayload:   "malformed_payload",
	ExpiredToken:       "expired_token",
	CredentialMismatch: "credential_mismatch",
	UserBlocked:        "user_blocked",
	PersistenceFailure: "persistence_failure",
}

// String returns the snake_case name used in logs, metrics and audit events.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Stage is a step of the validation pipeline, in execution order.
type Stage int

const (
	StageNone Stage = iota
	StageParamsPresent
	StageNotReplayed
	StageKeyResolved
	StageDecrypted
	StageShapeValid
	StageFresh
	StageCredentialsMatch
	StageNotBlocked
	StageRecorded
)

var stageNames = [...]string{
	StageNone:             "none",
	StageParamsPresent:    "params_present",
	StageNotReplayed:      "not_replayed",
	StageKeyResolved:      "key_resolved",
	StageDecrypted:        "decrypted",
	StageShapeValid:       "shape_valid",
	StageFresh:            "fresh",
	StageCredentialsMatch: "credentials_match",
	StageNotBlocked:       "not_blocked",
	StageRecorded:         "recorded",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return stageNames[StageNone]
	}
	return stageNames[s]
}

// Error is the single error type returned by Validator.Validate.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s at %s: %v", e.Kind, e.Stage, e.Err)
	}
	if e.Stage == StageNone {
		return "auth: " + e.Kind.String()
	}
	return fmt.Sprintf("auth: %s at %s", e.Kind, e.Stage)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind. A target with StageNone matches any stage,
// so errors.Is(err, ErrReplayedToken) holds for both replay checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Stage == StageNone || t.Stage == e.Stage)
}

// Sentinels for errors.Is matching by kind. KeyStore implementations return
// ErrKeyNotFound directly for unknown modalities.
var (
	ErrMissingParameter   = &Error{Kind: MissingParameter}
	ErrReplayedToken      = &Error{Kind: ReplayedToken}
	ErrKeyNotFound        = &Error{Kind: KeyNotFound}
	ErrWeakKey            = &Error{Kind: WeakKey}
	ErrDecryptionFailure  = &Error{Kind: DecryptionFailure}
	ErrMalformedPayload   = &Error{Kind: MalformedPayload}
	ErrExpiredToken       = &Error{Kind: ExpiredToken}
	ErrCredentialMismatch = &Error{Kind: CredentialMismatch}
	ErrUserBlocked        = &Error{Kind: UserBlocked}
	ErrPersistenceFailure = &Error{Kind: PersistenceFailure}
)

// Collaborator sentinels.
var (
	// ErrDuplicateToken is returned by NonceLedger.Insert when the token is already recorded.
	ErrDuplicateToken = errors.New("token already recorded")

	// ErrLedgerClosed is returned by ledger operations after Close.
	ErrLedgerClosed = errors.New("nonce ledger is closed")

	// ErrUserNotFound is returned by UserDirectory.LookupUser for unknown usernames.
	ErrUserNotFound = errors.New("user not found")

	// ErrDirectoryUnavailable is returned when the directory circuit breaker rejects a call.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
)

// KindOf extracts the Kind from err. It returns KindUnknown, false when err
// does not wrap an *Error.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return KindUnknown, false
}

// StageOf extracts the Stage from err, or StageNone.
func StageOf(err error) Stage {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return StageNone
}

func fail(kind Kind, stage Stage, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: cause}
}
