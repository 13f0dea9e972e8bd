// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package models defines data structures shared by the database and API layers.

Key Components:

  - Issue: a geo-tagged report with publication state and moderation flag
  - Comment: a reply on an issue
  - BoundingBox and IssueFilter: spatial query parameters
  - APIResponse: the {status, data, message} envelope written by every endpoint

Models carry JSON tags matching the wire format clients already consume
(for example "myIssue" and "created_by_current_user").
*/
package models
