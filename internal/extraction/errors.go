package extraction

import "errors"

// ErrDocumentNotReady is returned when extraction is requested for a
// document that has not completed ingestion.
var ErrDocumentNotReady = errors.New("document has not completed ingestion")

// errUnparseable marks a completion the response parser could not turn
// into tag values. It drives the completion retry loop and is never
// returned to callers.
var errUnparseable = errors.New("completion response is not parseable")
