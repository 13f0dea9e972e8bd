// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package database

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/civicmap/internal/auth"
	"github.com/tomtom215/civicmap/internal/logging"
	"github.com/tomtom215/civicmap/internal/models"
)

// Demo credentials created by SeedDemoData. They exist for local
// development and integration tests only.
const (
	DemoModalityID     auth.ModalityID = 1
	DemoModalitySecret                 = "civicmap-demo-secret-key"
	DemoPassword                       = "demo-password"
)

// SeedDemoData provisions one modality, a few users and issues. It does
// nothing when api_keys already holds a row.
func (db *DB) SeedDemoData(ctx context.Context) error {
	counts, err := db.GetRecordCounts(ctx)
	if err != nil {
		return err
	}
	if counts["api_keys"] > 0 {
		logging.Info().Msg("Database already provisioned, skipping demo seed")
		return nil
	}

	logging.Info().Msg("Seeding database with demo data...")

	if err := db.CreateAPIKey(ctx, &auth.Key{
		ModalityID: DemoModalityID,
		Name:       "demo",
		Secret:     []byte(DemoModalitySecret),
	}); err != nil {
		return fmt.Errorf("failed to seed modality: %w", err)
	}

	hash, err := auth.HashPassword(DemoPassword, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash demo password: %w", err)
	}

	users := []auth.User{
		{Username: "alice", Name: "Alice Example"},
		{Username: "bob", Name: "Bob Example"},
		{Username: "mallory", Name: "Mallory Blocked", Blocked: true},
	}
	ids := make(map[string]int64, len(users))
	for i := range users {
		users[i].PasswordHash = hash
		id, err := db.CreateUser(ctx, &users[i])
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", users[i].Username, err)
		}
		ids[users[i].Username] = id
	}
	logging.Info().Int("count", len(users)).Msg("Created demo users")

	// One issue waits for moderation and one is resolved, so every
	// visibility rule has demo data behind it.
	issues := []struct {
		owner     string
		in        models.IssueInput
		moderated bool
		resolved  bool
	}{
		{owner: "alice", in: models.IssueInput{Title: "Broken street light", Description: "Light has been out for a week", Address: "Egnatia 100", Latitude: 40.6330, Longitude: 22.9472}},
		{owner: "alice", in: models.IssueInput{Title: "Pothole", Description: "Deep pothole in the right lane", Address: "Tsimiski 45", Latitude: 40.6321, Longitude: 22.9415}},
		{owner: "bob", in: models.IssueInput{Title: "Overflowing bin", Description: "Collected twice a week, not enough", Address: "Aristotelous Sq", Latitude: 40.6326, Longitude: 22.9406}},
		{owner: "bob", in: models.IssueInput{Title: "Graffiti on school wall", Address: "Agias Sofias 12", Latitude: 40.6345, Longitude: 22.9468}, moderated: true},
		{owner: "alice", in: models.IssueInput{Title: "Fallen tree branch", Address: "Nea Paralia", Latitude: 40.6268, Longitude: 22.9484}, resolved: true},
	}
	for _, seed := range issues {
		issue, err := db.CreateIssue(ctx, ids[seed.owner], &seed.in)
		if err != nil {
			return fmt.Errorf("failed to seed issue %q: %w", seed.in.Title, err)
		}
		if seed.moderated {
			if err := db.SetIssueModeration(ctx, issue.ID, true); err != nil {
				return fmt.Errorf("failed to seed issue %q: %w", seed.in.Title, err)
			}
		}
		if seed.resolved {
			if err := db.SetIssueState(ctx, issue.ID, models.IssueStateUnpublished); err != nil {
				return fmt.Errorf("failed to seed issue %q: %w", seed.in.Title, err)
			}
		}
		if _, err := db.CreateComment(ctx, &models.CommentInput{
			IssueID:     issue.ID,
			CreatedBy:   ids["bob"],
			Fullname:    "Bob Example",
			Description: "Seen this too",
		}); err != nil {
			return fmt.Errorf("failed to seed comment: %w", err)
		}
	}
	logging.Info().Int("count", len(issues)).Msg("Created demo issues")

	logging.Info().Msg("Demo data seeding complete")
	return nil
}
