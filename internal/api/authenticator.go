// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
authenticator.go - Token Authentication for HTTP Requests

Every API request carries three parameters, in the query string or the form
body:

	token  the encrypted credential bundle
	m_id   the modality (client integration) id
	l      a two-letter language code

RequestAuthenticator checks them, hands them to the token validator and
publishes the outcome on the audit stream. Require wraps the check as chi
middleware and stores the principal in the request context.
*/

//nolint:staticcheck // File documentation, not package doc
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/tomtom215/civicmap/internal/audit"
	"github.com/tomtom215/civicmap/internal/auth"
	"github.com/tomtom215/civicmap/internal/logging"
	"github.com/tomtom215/civicmap/internal/validation"
)

// TokenValidator validates one presented token. *auth.Validator implements it.
type TokenValidator interface {
	Validate(ctx context.Context, req auth.Request) (*auth.Result, error)
}

// RequestAuthenticator authenticates HTTP requests by token.
type RequestAuthenticator struct {
	validator TokenValidator
	publisher audit.Publisher
}

// NewRequestAuthenticator creates an authenticator. A nil publisher disables
// audit events.
func NewRequestAuthenticator(validator TokenValidator, publisher audit.Publisher) *RequestAuthenticator {
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}
	return &RequestAuthenticator{validator: validator, publisher: publisher}
}

// Authenticate validates the token parameters of r. On failure the error is
// always an *auth.Error.
func (a *RequestAuthenticator) Authenticate(r *http.Request) (*auth.Result, error) {
	params := validation.AuthParams{
		// Query decoding turns '+' from the standard base64 alphabet into spaces.
		Token:      strings.ReplaceAll(r.FormValue("token"), " ", "+"),
		ModalityID: r.FormValue("m_id"),
		Language:   r.FormValue("l"),
	}

	var (
		result *auth.Result
		err    error
	)
	modality, parseErr := auth.ParseModalityID(params.ModalityID)
	if verr := validation.ValidateStruct(&params); verr != nil {
		err = &auth.Error{Kind: auth.MissingParameter, Stage: auth.StageParamsPresent, Err: verr}
	} else if parseErr != nil {
		err = &auth.Error{Kind: auth.MissingParameter, Stage: auth.StageParamsPresent, Err: parseErr}
	} else {
		result, err = a.validator.Validate(r.Context(), auth.Request{
			Token:      params.Token,
			ModalityID: modality,
			Language:   params.Language,
			Method:     r.Method,
		})
	}

	a.publish(r, modality, result, err)
	return result, err
}

// Require returns middleware that rejects unauthenticated requests with the
// error envelope and the given status, and stores the principal otherwise.
func (a *RequestAuthenticator) Require(failureStatus int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := a.Authenticate(r)
			if err != nil {
				respondError(w, r, failureStatus, FailureMessage(err), nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), result)))
		})
	}
}

func (a *RequestAuthenticator) publish(r *http.Request, modality auth.ModalityID, result *auth.Result, err error) {
	event := audit.NewEvent(audit.TypeAuthSuccess)
	if err != nil {
		event.Type = audit.TypeAuthFailure
		kind, _ := auth.KindOf(err)
		event.Kind = kind.String()
		event.Stage = auth.StageOf(err).String()
	} else {
		event.UserID = result.UserID
		event.Username = result.Username
	}
	event.ModalityID = int64(modality)
	event.Method = r.Method
	event.Path = r.URL.Path
	event.RemoteIP = clientIP(r)
	event.RequestID = logging.RequestIDFromContext(r.Context())

	if perr := a.publisher.Publish(r.Context(), event); perr != nil {
		logging.Ctx(r.Context()).Warn().Err(perr).Str("event_type", event.Type).Msg("Failed to publish auth event")
	}
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP has
// already replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var failureMessages = map[auth.Kind]string{
	auth.MissingParameter:   "Request is invalid",
	auth.ReplayedToken:      "Token is already used",
	auth.KeyNotFound:        "Modality is unknown",
	auth.WeakKey:            "Secret key is invalid. Contact administrator",
	auth.DecryptionFailure:  "Token is invalid",
	auth.MalformedPayload:   "Token is not well formatted",
	auth.ExpiredToken:       "Token has expired",
	auth.CredentialMismatch: "Token does not match",
	auth.UserBlocked:        "Token user is blocked",
	auth.PersistenceFailure: "Request could not be authenticated",
}

// FailureMessage returns the client-facing message for an authentication error.
func FailureMessage(err error) string {
	kind, ok := auth.KindOf(err)
	if !ok {
		return failureMessages[auth.PersistenceFailure]
	}
	// A payload that decrypted to something other than a JSON object is
	// reported like a bad ciphertext.
	if kind == auth.MalformedPayload && auth.StageOf(err) == auth.StageDecrypted {
		return failureMessages[auth.DecryptionFailure]
	}
	if msg, ok := failureMessages[kind]; ok {
		return msg
	}
	return failureMessages[auth.PersistenceFailure]
}

type principalKey struct{}

// ContextWithPrincipal returns a copy of ctx carrying the authenticated principal.
func ContextWithPrincipal(ctx context.Context, p *auth.Result) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by Require.
func PrincipalFromContext(ctx context.Context) (*auth.Result, bool) {
	p, ok := ctx.Value(principalKey{}).(*auth.Result)
	return p, ok && p != nil
}

// ErrNoPrincipal is logged when a handler is reached without authentication.
var ErrNoPrincipal = errors.New("request has no authenticated principal")

// requirePrincipal returns the request principal, writing a 401 envelope when
// the route was mounted without Require.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (*auth.Result, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, failureMessages[auth.PersistenceFailure], ErrNoPrincipal)
	}
	return p, ok
}
