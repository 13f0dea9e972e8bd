// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/civicmap/internal/logging"
)

// DefaultFreshnessWindow is the maximum token age.
const DefaultFreshnessWindow = 600 * time.Second

// Request is one token presented for validation.
type Request struct {
	Token      string
	ModalityID ModalityID
	Language   string
	Method     string
}

// Result identifies the principal of an accepted token.
type Result struct {
	UserID     int64
	Username   string
	Name       string
	ModalityID ModalityID
	IssuedAt   time.Time
}

// ValidatorConfig holds a Validator's collaborators.
type ValidatorConfig struct {
	Keys     KeyStore
	Codec    Codec
	Ledger   NonceLedger
	Users    UserDirectory
	Verifier CredentialVerifier

	// FreshnessWindow is inclusive: a token exactly this old is accepted.
	FreshnessWindow time.Duration
	MinSecretLength int

	// Clock returns the current time; time.Now when nil.
	Clock func() time.Time
}

// Validator decides whether a token is authentic, fresh and unused, and
// records it as used when it is.
//
// The checks run in a fixed order and the first failure ends validation:
//
//	params present -> not replayed -> key resolved -> decrypted ->
//	shape valid -> fresh -> credentials match -> not blocked -> recorded
//
// Validate is safe for concurrent use. The ledger insert is the only step
// that decides between two concurrent submissions of one token.
type Validator struct {
	keys     KeyStore
	codec    Codec
	ledger   NonceLedger
	users    UserDirectory
	verifier CredentialVerifier
	window   time.Duration
	minLen   int
	now      func() time.Time
}

// NewValidator creates a Validator. Keys, Ledger and Users are required.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.Keys == nil {
		return nil, errors.New("validator: key store is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("validator: nonce ledger is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("validator: user directory is required")
	}

	v := &Validator{
		keys:     cfg.Keys,
		codec:    cfg.Codec,
		ledger:   cfg.Ledger,
		users:    cfg.Users,
		verifier: cfg.Verifier,
		window:   cfg.FreshnessWindow,
		minLen:   cfg.MinSecretLength,
		now:      cfg.Clock,
	}
	if v.codec == nil {
		v.codec = NewAESCodec()
	}
	if v.verifier == nil {
		v.verifier = BcryptVerifier{}
	}
	if v.window <= 0 {
		v.window = DefaultFreshnessWindow
	}
	if v.minLen < MinSecretLength {
		v.minLen = MinSecretLength
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v, nil
}

// Validate runs the pipeline. On failure the error is always an *Error.
func (v *Validator) Validate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := v.validate(ctx, req)
	recordValidation(err, time.Since(start))

	if err != nil {
		kind, _ := KindOf(err)
		ev := logging.Ctx(ctx).Warn()
		if kind == PersistenceFailure {
			ev = logging.Ctx(ctx).Error()
		}
		ev = ev.Str("modality", req.ModalityID.String()).
			Str("method", req.Method).
			Str("kind", kind.String()).
			Str("stage", StageOf(err).String())
		if cause := errors.Unwrap(err); cause != nil {
			ev = ev.Str("error", logging.SanitizeError(cause.Error()))
		}
		ev.Msg("Token rejected")
		return nil, err
	}

	logging.Ctx(ctx).Debug().
		Str("modality", req.ModalityID.String()).
		Int64("user_id", res.UserID).
		Str("method", req.Method).
		Msg("Token accepted")
	return res, nil
}

func (v *Validator) validate(ctx context.Context, req Request) (*Result, error) {
	token := strings.TrimSpace(req.Token)

	// 1. params present
	if token == "" {
		return nil, fail(MissingParameter, StageParamsPresent, errors.New("token is empty"))
	}
	if req.ModalityID <= 0 {
		return nil, fail(MissingParameter, StageParamsPresent, ErrInvalidModalityID)
	}
	if strings.TrimSpace(req.Language) == "" {
		return nil, fail(MissingParameter, StageParamsPresent, errors.New("language is empty"))
	}

	// 2. not replayed (fast path; the insert below is authoritative)
	used, err := v.ledger.Exists(ctx, token)
	if err != nil {
		return nil, fail(PersistenceFailure, StageNotReplayed, err)
	}
	if used {
		return nil, fail(ReplayedToken, StageNotReplayed, nil)
	}

	// 3. key resolved
	key, err := v.keys.Resolve(ctx, req.ModalityID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fail(KeyNotFound, StageKeyResolved, nil)
		}
		return nil, fail(PersistenceFailure, StageKeyResolved, err)
	}
	if err := ValidateKey(key, v.minLen); err != nil {
		return nil, err
	}

	// 4. decrypted
	plain, err := DecryptString(v.codec, token, key)
	if err != nil {
		return nil, fail(DecryptionFailure, StageDecrypted, err)
	}

	// 5. shape valid
	payload, err := ParsePayload(plain)
	if err != nil {
		if errors.Is(err, ErrPayloadNotObject) {
			return nil, fail(MalformedPayload, StageDecrypted, err)
		}
		return nil, fail(MalformedPayload, StageShapeValid, err)
	}

	// 6. fresh
	// Compared without subtracting so extreme timestamps cannot overflow.
	oldest := v.now().Add(-v.window).Unix()
	if payload.Timestamp < oldest {
		return nil, fail(ExpiredToken, StageFresh, fmt.Errorf("token issued at %d, oldest accepted %d", payload.Timestamp, oldest))
	}

	// 7. credentials match; an unknown user is indistinguishable from a bad password
	user, err := v.users.LookupUser(ctx, payload.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fail(CredentialMismatch, StageCredentialsMatch, nil)
		}
		return nil, fail(PersistenceFailure, StageCredentialsMatch, err)
	}
	if !v.verifier.Verify(payload.Password, user.PasswordHash, user.ID) {
		return nil, fail(CredentialMismatch, StageCredentialsMatch, nil)
	}

	// 8. not blocked
	if user.Blocked {
		return nil, fail(UserBlocked, StageNotBlocked, nil)
	}

	// 9. recorded
	err = v.ledger.Insert(ctx, &NonceRecord{
		KeyID:    req.ModalityID,
		UserID:   user.ID,
		Method:   req.Method,
		Token:    token,
		UnixTime: payload.Timestamp,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateToken) {
			return nil, fail(ReplayedToken, StageRecorded, nil)
		}
		return nil, fail(PersistenceFailure, StageRecorded, err)
	}

	return &Result{
		UserID:     user.ID,
		Username:   user.Username,
		Name:       user.Name,
		ModalityID: req.ModalityID,
		IssuedAt:   payload.IssuedAt(),
	}, nil
}
