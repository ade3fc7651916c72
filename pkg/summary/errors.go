package summary

import "errors"

// Sentinel errors. Check with [errors.Is].
//
// Read paths never return these to callers; they are logged and mapped to
// "no cache" or the salvage path. Write paths wrap them.
var (
	// ErrNoCache means there is no usable summary: the file is missing,
	// unreadable, too short, or carries an unknown magic or version.
	//
	// Recovery: scan the whole mailbox.
	ErrNoCache = errors.New("summary: no cache")

	// ErrCorrupt means the file was recognized but its tables or records
	// could not be decoded: truncation, or an index past the end of a table.
	//
	// Recovery: salvage flags and rewrite the summary after a full scan.
	ErrCorrupt = errors.New("summary: corrupt")

	// ErrIncompatible means the folder cannot be represented in the
	// current format, for example an offset beyond 4 GiB.
	ErrIncompatible = errors.New("summary: incompatible")
)
