// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package auth validates single-use encrypted request tokens.

A client integration (a "modality") is provisioned with a shared secret.
For every request it builds a small JSON payload

	{"u": "<username>", "p": "<password>", "t": "<unix seconds>", "r": "<random>"}

encrypts it with AES-CBC under its secret and sends the base64 ciphertext as
the token parameter together with its modality id (m_id). The server never
issues tokens.

Key Components:

  - KeyStore: resolves a modality's secret (StaticKeyStore, CachedKeyStore,
    and the DuckDB store in internal/database)
  - Codec: AES-CBC with PKCS#7 padding and a random IV prefix (AESCodec)
  - NonceLedger: records consumed tokens; Insert is the atomic replay guard
    (MemoryLedger, BadgerLedger, and the DuckDB ledger)
  - UserDirectory and CredentialVerifier: bcrypt password check, optionally
    behind a gobreaker circuit (BreakerDirectory)
  - Validator: the ordered validation pipeline

Validation Pipeline:

Validator.Validate runs these checks in order and stops at the first failure:

 1. ParamsPresent: token and modality id are set
 2. NotReplayed: the token is not in the ledger yet
 3. KeyResolved: the modality exists and its secret is strong enough
 4. Decrypted: the token decrypts under that secret
 5. ShapeValid: the payload carries u, p, t and r
 6. Fresh: t is at most the freshness window in the past (inclusive)
 7. CredentialsMatch: the user exists and the password verifies
 8. NotBlocked: the user is not blocked
 9. Recorded: the ledger insert succeeds

A failed validation leaves no ledger record, so only accepted tokens are
consumed. Every failure is an *Error carrying a Kind and the Stage that
failed:

	res, err := validator.Validate(ctx, auth.Request{
	    Token:      r.FormValue("token"),
	    ModalityID: mid,
	    Language:   r.FormValue("l"),
	    Method:     r.Method,
	})
	if errors.Is(err, auth.ErrExpiredToken) {
	    // ...
	}

Replay Protection:

Both the pre-check (stage 2) and a lost insert race (stage 9) report
ReplayedToken; Error.Stage and the token_replays_total{stage} metric tell
them apart. Token uniqueness is global: the ledger key is the token text
alone, not the (modality, token) pair.

Security:

Logs and metrics never carry the password, the secret or the decrypted
payload. An unknown username is reported as CredentialMismatch, the same as a
wrong password.
*/
package auth
