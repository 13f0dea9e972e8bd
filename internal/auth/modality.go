// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinSecretLength is the smallest accepted modality secret, in bytes.
const MinSecretLength = 16

// ErrInvalidModalityID is returned by ParseModalityID.
var ErrInvalidModalityID = errors.New("invalid modality id")

// ModalityID identifies a client integration (the m_id request parameter).
type ModalityID int64

// ParseModalityID parses a positive decimal modality id.
func ParseModalityID(s string) (ModalityID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidModalityID
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidModalityID, s)
	}
	return ModalityID(n), nil
}

func (m ModalityID) String() string {
	return strconv.FormatInt(int64(m), 10)
}

// Key is the shared secret provisioned for one modality.
type Key struct {
	ModalityID ModalityID
	Secret     []byte
	Name       string
}

// ValidateKey rejects a key whose secret is shorter than minLen bytes.
// A minLen below MinSecretLength is raised to it.
func ValidateKey(k *Key, minLen int) error {
	if minLen < MinSecretLength {
		minLen = MinSecretLength
	}
	if k == nil || len(k.Secret) < minLen {
		n := 0
		if k != nil {
			n = len(k.Secret)
		}
		return fail(WeakKey, StageKeyResolved, fmt.Errorf("secret key is %d bytes, need %d", n, minLen))
	}
	return nil
}
