// Package api exposes the operator admin API: pipeline progress, dataset
// statistics, random samples and human feedback submission. Handlers adapt
// HTTP requests to the service layer and map service errors to status codes
// without leaking internal details.
package api
