// Package stage implements the four generation steps of the pipeline.
//
// A Stage turns one claimed work item into an Outcome. Stages call the
// generation service and the identity resolver but never write to the store;
// the pipeline applies outcomes inside the claiming transaction.
package stage
