// Package summary reads and writes folder summary files: binary caches of a
// mailbox's message headers, flags and offsets that let a client open a
// folder without scanning it.
//
// # Trust
//
// A summary records the size and mtime of the mailbox it describes. When
// both still match the live file the summary is trusted (optimistic read):
// its messages are handed to the [Folder] and the caller scans only the
// tail beyond [Header.ParsedThrough]. Otherwise the read is pessimistic:
// records are decoded only to recover flags by Message-ID into
// [Record.Salvage], and the caller scans the whole mailbox.
//
// A summary that fails to decode partway is treated as pessimistic. Flags
// from every record decoded before the failure are salvaged; nothing
// reaches the folder.
//
// # Versions
//
// Every file starts with [Magic] and a big-endian version. Version 4
// ([Legacy]) is read-only. Version 6 ([Current]) is read and written.
// Anything else, including a truncated header, means there is no cache.
package summary
