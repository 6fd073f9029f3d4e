// Package services defines the error taxonomy shared by the pipeline stages
// and the context annotations loggers derive structured fields from.
//
// Stage code tags failures with one of the sentinel errors so callers can
// classify them: external tool failures mark the track failed and let the
// run continue, storage and configuration errors abort the run.
package services
