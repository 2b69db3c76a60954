// Package inference drives image-generation jobs on a remote async-invoke
// API: submit a job, poll its status until a terminal state, fetch the
// final result, and normalize whatever shape comes back into raw image
// bytes plus a content type. Failures at each phase carry a distinct
// error type so callers can map them onto protocol responses.
package inference
