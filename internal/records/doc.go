// Package records persists short-video records in SQLite and exposes the
// reads and writes the text pipeline needs.
//
// A record carries the item's external id (aweme_id), optional media
// locators, an optional duration, and the transcribed text. Records whose
// text is empty and whose aweme_id is set are pending; the batch runner
// selects them, and the pipeline writes final text back through
// BatchUpdateText (one transaction for the whole batch) or UpdateText (one
// record).
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema.
package records
