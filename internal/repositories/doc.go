// Package repositories implements SQLite persistence for pipeline run history.
//
// [StageRunRepository] stores one row per retry pass of a stage, so interrupted or exhausted runs
// can be inspected later with `pmx history`.
//
// Sequence numbers provide stable, human-readable ordering (e.g., pass #42) independent of UUIDs and
// timestamps. The [NextSequence] function atomically increments per-table sequence counters in
// dedicated sequence tables.
package repositories
