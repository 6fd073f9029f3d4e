// Package library manages track persistence backed by SQLite.
//
// Every track moves through a fixed lifecycle: queued, downloading,
// tagging, and finally organized (or a failure status for the stage that
// broke). Status changes funnel through UpdateStatus, which rejects
// transitions the lifecycle does not allow, so no caller can invent its
// own path through the pipeline.
package library
