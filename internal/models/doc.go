// Package models defines the entities tracked by the migration pipeline.
//
// Entities fall into two groups:
//
// 1. Library documents: JSON documents kept in the entity store, one per remote object
//   - [Photo] : one source media item and its progress through the pipeline
//   - [Album] : one source album and its destination counterpart
//
// 2. Persistent records: database-backed models implementing [Model]
//   - [StageRun] : one pass of a stage processor driven by the retry orchestrator
//
// A Photo's progress is derived from which fields are present ([Photo.State]); fields are only
// ever added, never cleared, so the state only moves forward.
package models
