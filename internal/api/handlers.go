// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package api

import (
	"context"
	"time"

	"github.com/tomtom215/civicmap/internal/config"
	"github.com/tomtom215/civicmap/internal/middleware"
	"github.com/tomtom215/civicmap/internal/models"
)

// IssueStore is the issue data access used by the handlers. *database.DB implements it.
type IssueStore interface {
	ListIssues(ctx context.Context, filter models.IssueFilter, userID int64) ([]models.Issue, error)
	GetIssue(ctx context.Context, id, userID int64) (*models.Issue, error)
	CreateIssue(ctx context.Context, userID int64, in *models.IssueInput) (*models.Issue, error)
	UpdateIssue(ctx context.Context, id, userID int64, patch *models.IssuePatch) (*models.Issue, error)
}

// CommentStore is the comment data access used by the handlers. *database.DB implements it.
type CommentStore interface {
	ListComments(ctx context.Context, issueID, userID int64) ([]models.Comment, error)
	CreateComment(ctx context.Context, in *models.CommentInput) (*models.Comment, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the API endpoints.
type Handler struct {
	issues    IssueStore
	comments  CommentStore
	db        Pinger
	perf      *middleware.PerformanceMonitor
	cfg       config.CommentsConfig
	version   string
	startTime time.Time
}

// HandlerConfig holds a Handler's collaborators.
type HandlerConfig struct {
	Issues   IssueStore
	Comments CommentStore
	DB       Pinger
	Perf     *middleware.PerformanceMonitor
	Comment  config.CommentsConfig
	Version  string
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		issues:    cfg.Issues,
		comments:  cfg.Comments,
		db:        cfg.DB,
		perf:      cfg.Perf,
		cfg:       cfg.Comment,
		version:   cfg.Version,
		startTime: time.Now(),
	}
}
