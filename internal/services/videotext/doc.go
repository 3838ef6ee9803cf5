// Package videotext wraps the remote transcription service's submit/poll API.
//
// Two job types are exposed: ASR (speech to raw text) and LLM (raw text to
// normalized text). Each has a submit call that either assigns a task handle
// or reports that the result already exists, and a fetch call that returns
// the finished text or reports that the task is still processing. The
// service's "EXIST" sentinel is decoded here and never leaves the package;
// callers receive a tagged Submission instead.
//
// The client never retries. Every failure is an *Error carrying the item id
// and one of the services error markers.
package videotext
