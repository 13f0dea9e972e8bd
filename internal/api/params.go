// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Parameters are read with r.FormValue, so the query string and a
// url-encoded or multipart body are both accepted.

// idParam returns a positive integer parameter, or 0 when it is absent or
// not a positive integer.
func idParam(r *http.Request, key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.FormValue(key)), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// intParam returns an integer parameter, or defaultValue when absent.
func intParam(r *http.Request, key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// int64Param is intParam for 64-bit values.
func int64Param(r *http.Request, key string, defaultValue int64) (int64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// floatParam returns a float parameter, or nil when absent.
func floatParam(r *http.Request, key string) (*float64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &f, nil
}

// stringParam returns a parameter and whether it was supplied at all.
func stringParam(r *http.Request, key string) (*string, bool) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, false
	}
	values, ok := r.Form[key]
	if !ok || len(values) == 0 {
		return nil, false
	}
	v := values[0]
	return &v, true
}

// maxFormMemory bounds multipart parsing, matching net/http's default.
const maxFormMemory = 32 << 20

// floatParams reads several float parameters, stopping at the first error.
func floatParams(r *http.Request, keys ...string) ([]*float64, error) {
	out := make([]*float64, len(keys))
	for i, key := range keys {
		f, err := floatParam(r, key)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
