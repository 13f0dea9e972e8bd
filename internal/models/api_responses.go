// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package models

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope written by every API endpoint.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": [{"id": 7, "title": "Broken streetlight", "myIssue": true}],
//	  "message": "Issues fetched successfully",
//	  "request_id": "6f1c..."
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "data": null,
//	  "message": "Token has expired",
//	  "request_id": "6f1c..."
//	}
//
// Data is always present so clients can test it for null.
type APIResponse struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data"`
	Message   string      `json:"message,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// IsSuccess reports whether the response carries a success status.
func (r *APIResponse) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// HealthStatus is returned by the health endpoints.
type HealthStatus struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
	Version  string `json:"version,omitempty"`
	Uptime   string `json:"uptime,omitempty"`
}
