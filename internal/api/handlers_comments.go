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

// Comment endpoint messages.
const (
	msgCommentsFetched     = "Comments fetched successfully"
	msgCommentPosted       = "Comment posted successfully"
	msgCommentsNotAllowed  = "Comments are not allowed"
	msgInvalidIssueID      = "Invalid issueid"
	msgCommentsUnavailable = "Comments could not be loaded"
)

// Every comment endpoint failure is a 403.
func respondCommentError(w http.ResponseWriter, r *http.Request, message string, err error) {
	respondError(w, r, http.StatusForbidden, message, err)
}

// Comments lists the published comments of an issue.
//
// GET /api/v1/comments?issueid=
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	issueID := idParam(r, "issueid")
	if issueID == 0 {
		respondCommentError(w, r, msgInvalidIssueID, nil)
		return
	}

	comments, err := h.comments.ListComments(r.Context(), issueID, principal.UserID)
	if err != nil {
		respondCommentError(w, r, msgCommentsUnavailable, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	respondSuccess(w, r, comments, msgCommentsFetched)
}

// PostComment adds a comment to an issue. New comments wait for moderation
// unless direct publishing is enabled.
//
// POST /api/v1/comments  issueid, parentid, description
func (h *Handler) PostComment(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !h.cfg.Enabled {
		respondCommentError(w, r, msgCommentsNotAllowed, nil)
		return
	}

	issueID, err := int64Param(r, "issueid", 0)
	if err != nil {
		respondCommentError(w, r, err.Error(), nil)
		return
	}
	parentID, err := int64Param(r, "parentid", 0)
	if err != nil {
		respondCommentError(w, r, err.Error(), nil)
		return
	}
	req := validation.CommentCreate{
		IssueID:     issueID,
		ParentID:    parentID,
		Description: r.FormValue("description"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondCommentError(w, r, verr.FirstMessage(), nil)
		return
	}

	fullname := principal.Name
	if fullname == "" {
		fullname = principal.Username
	}
	comment, err := h.comments.CreateComment(r.Context(), &models.CommentInput{
		IssueID:     req.IssueID,
		ParentID:    req.ParentID,
		CreatedBy:   principal.UserID,
		Fullname:    fullname,
		Description: req.Description,
		Moderation:  !h.cfg.DirectPublishing,
	})
	switch {
	case errors.Is(err, database.ErrIssueNotFound):
		respondCommentError(w, r, msgIssueNotFound, nil)
	case err != nil:
		respondCommentError(w, r, msgRequestFailed, err)
	default:
		respondSuccess(w, r, comment, msgCommentPosted)
	}
}
