// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/civicmap/internal/database"
	"github.com/tomtom215/civicmap/internal/models"
	"github.com/tomtom215/civicmap/internal/validation"
)

// Issue endpoint messages.
const (
	msgIssuesFetched     = "Issues fetched successfully"
	msgIssueFetched      = "Issue fetched successfully"
	msgIDNotSet          = "Id is not set"
	msgIssueNotFound     = "Issue do not exists"
	msgIssueModerated    = "Issue is under moderation"
	msgIssueNotPublished = "Issue is not published"
	msgIssueNotYours     = "Issue is not yours"
	msgPostWithID        = "You cannot use POST to fetch issue. Use GET instead"
	msgMethodUnsupported = "HTTP method is not supported"
	msgRequestFailed     = "Request could not be completed"
)

// Data errors are reported in the envelope with status 200.
func respondDataError(w http.ResponseWriter, r *http.Request, message string, err error) {
	respondError(w, r, http.StatusOK, message, err)
}

// Issues lists published issues, plus the caller's own issues under
// moderation, optionally within a bounding box.
//
// GET /api/v1/issues?minLat=&maxLat=&minLng=&maxLng=&limit=
func (h *Handler) Issues(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	corners, err := floatParams(r, "minLat", "maxLat", "minLng", "maxLng")
	if err != nil {
		respondDataError(w, r, err.Error(), nil)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondDataError(w, r, err.Error(), nil)
		return
	}

	q := validation.IssuesQuery{MinLat: corners[0], MaxLat: corners[1], MinLng: corners[2], MaxLng: corners[3], Limit: limit}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondDataError(w, r, verr.FirstMessage(), nil)
		return
	}

	filter := models.IssueFilter{Limit: q.Limit}
	if q.HasBox() {
		filter.Box = &models.BoundingBox{MinLat: *q.MinLat, MaxLat: *q.MaxLat, MinLng: *q.MinLng, MaxLng: *q.MaxLng}
	}

	issues, err := h.issues.ListIssues(r.Context(), filter, principal.UserID)
	if err != nil {
		respondDataError(w, r, msgRequestFailed, err)
		return
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	respondSuccess(w, r, issues, msgIssuesFetched)
}

// Issue fetches, creates or updates one issue depending on the HTTP method.
//
// GET /api/v1/issue?id=          fetch
// POST /api/v1/issue             create
// PUT|PATCH /api/v1/issue?id=    update the caller's own issue
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id := idParam(r, "id")

	switch r.Method {
	case http.MethodGet:
		h.getIssue(w, r, id, principal.UserID)
	case http.MethodPost:
		if id != 0 {
			respondDataError(w, r, msgPostWithID, nil)
			return
		}
		h.createIssue(w, r, principal.UserID)
	case http.MethodPut, http.MethodPatch:
		if id == 0 {
			respondDataError(w, r, msgIDNotSet, nil)
			return
		}
		h.updateIssue(w, r, id, principal.UserID)
	default:
		respondDataError(w, r, msgMethodUnsupported, nil)
	}
}

func (h *Handler) getIssue(w http.ResponseWriter, r *http.Request, id, userID int64) {
	if id == 0 {
		respondDataError(w, r, msgIDNotSet, nil)
		return
	}

	issue, err := h.issues.GetIssue(r.Context(), id, userID)
	switch {
	case errors.Is(err, database.ErrIssueNotFound):
		respondDataError(w, r, msgIssueNotFound, nil)
		return
	case err != nil:
		respondDataError(w, r, msgRequestFailed, err)
		return
	}

	if !issue.MyIssue && issue.Moderation {
		respondDataError(w, r, msgIssueModerated, nil)
		return
	}
	if issue.State != models.IssueStatePublished {
		respondDataError(w, r, msgIssueNotPublished, nil)
		return
	}
	respondSuccess(w, r, issue, msgIssueFetched)
}

func (h *Handler) createIssue(w http.ResponseWriter, r *http.Request, userID int64) {
	coords, err := floatParams(r, "lat", "lng")
	if err != nil {
		respondDataError(w, r, err.Error(), nil)
		return
	}
	req := validation.IssueCreate{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Address:     r.FormValue("address"),
		Latitude:    coords[0],
		Longitude:   coords[1],
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondDataError(w, r, verr.FirstMessage(), nil)
		return
	}

	issue, err := h.issues.CreateIssue(r.Context(), userID, &models.IssueInput{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		Language:    r.FormValue("l"),
	})
	if err != nil {
		respondDataError(w, r, msgRequestFailed, err)
		return
	}
	respondSuccess(w, r, issue, msgIssueFetched)
}

func (h *Handler) updateIssue(w http.ResponseWriter, r *http.Request, id, userID int64) {
	coords, err := floatParams(r, "lat", "lng")
	if err != nil {
		respondDataError(w, r, err.Error(), nil)
		return
	}
	req := validation.IssueUpdate{Latitude: coords[0], Longitude: coords[1]}
	req.Title, _ = stringParam(r, "title")
	req.Description, _ = stringParam(r, "description")
	req.Address, _ = stringParam(r, "address")
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondDataError(w, r, verr.FirstMessage(), nil)
		return
	}

	issue, err := h.issues.UpdateIssue(r.Context(), id, userID, &models.IssuePatch{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	switch {
	case errors.Is(err, database.ErrIssueNotFound):
		respondDataError(w, r, msgIssueNotFound, nil)
	case errors.Is(err, database.ErrNotIssueOwner):
		respondDataError(w, r, msgIssueNotYours, nil)
	case err != nil:
		respondDataError(w, r, msgRequestFailed, err)
	default:
		respondSuccess(w, r, issue, msgIssueFetched)
	}
}
