// Package tasks runs the migration pipeline stages over the local library.
//
// # Stages
//
// An [Engine] builds five [Stage] values, each advancing photos or albums by one step:
//
//  1. [Engine.Seed] : list every source item and album, write skeleton photos and album documents
//  2. [Engine.Populate] : fetch details and resolve the best source URL of skeleton photos
//  3. [Engine.Download] : fetch bytes of populated photos, patching missing capture dates
//  4. [Engine.CreateAlbums] : create destination albums one at a time
//  5. [Engine.Upload] : upload bytes, then link the items into their destination albums
//
// Every stage selects its candidates by checking whether the field it sets is still missing, so
// running a stage again only touches what is left. Per-photo failures are logged and counted in
// the returned [Tally]; only structural problems are returned as errors.
//
// # Retries
//
// A [Retrier] re-runs a stage until a pass converges (every attempted photo succeeded), the
// budget runs out, or a pass fails outright. Each pass can be recorded through a [Recorder].
//
// # Progress Reporting
//
// Stages send [ProgressUpdate] values on EngineOpts.Progress after each group of remote calls.
// Updates use select with default to prevent blocking.
package tasks
