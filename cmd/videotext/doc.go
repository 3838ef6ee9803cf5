// Package main hosts the videotext CLI entrypoint and command graph.
//
// Commands import records, run a batch through the transcription pipeline,
// keep a watch loop running on a schedule, and scaffold configuration. The
// heavy lifting lives in internal packages; commands here resolve
// configuration, open the record store, and render results.
package main
