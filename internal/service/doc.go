// Package service contains the operator-facing use cases served by the admin
// API: reading pipeline progress and dataset statistics, and recording human
// feedback (answers, ratings and votes) next to the machine-generated data.
//
// Services receive their stores through constructor injection and never
// depend on a concrete storage implementation. Expected conditions are
// reported with the sentinel errors in errors.go; everything else is wrapped
// in a ServiceError carrying the failed operation.
package service
