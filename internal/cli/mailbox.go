package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/calvinalkan/mailsummary/internal/mbox"
	"github.com/calvinalkan/mailsummary/pkg/summary"
)

// open returns the folder and summary record for a mailbox argument.
// Nothing is read yet.
func (a *app) open(arg string) (*mbox.Folder, *summary.Record) {
	path := a.cfg.resolveMailbox(arg)

	folder := mbox.Open(path, mbox.Options{FS: a.fs, Logger: a.log})
	rec := summary.NewRecord(a.cfg.SummaryPath(path), summary.Options{FS: a.fs, Logger: a.log})

	return folder, rec
}

// state classifies a summary after a load attempt.
type state string

const (
	stateTrusted     state = "trusted"
	stateStale       state = "stale"
	stateCorrupt     state = "corrupt"
	stateMissing     state = "missing"
	stateUnsupported state = "unsupported"
)

// classify reports why rec was or was not trusted by the last load into
// folder. hdr is set unless the state is missing or unsupported.
func (a *app) classify(folder *mbox.Folder, rec *summary.Record) (state, summary.Header) {
	file, err := a.fs.Open(rec.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stateMissing, summary.Header{}
		}

		return stateUnsupported, summary.Header{}
	}
	defer file.Close()

	hdr, err := summary.ReadHeader(file)
	if err != nil {
		return stateUnsupported, summary.Header{}
	}

	if rec.Version() != 0 {
		return stateTrusted, hdr
	}

	info, err := folder.Stat()
	if err != nil || info.Size() != hdr.FolderSize || info.ModTime().Unix() != hdr.FolderDate {
		return stateStale, hdr
	}

	return stateCorrupt, hdr
}

func printHeader(o *IO, path string, hdr summary.Header) {
	o.Println("summary=" + path)
	o.Printf("version=%d\n", hdr.Version)
	o.Printf("folder_size=%d\n", hdr.FolderSize)
	o.Printf("folder_date=%s\n", time.Unix(hdr.FolderDate, 0).UTC().Format(time.RFC3339))
	o.Printf("parsed_through=%d\n", hdr.ParsedThrough)
	o.Printf("%s\n", formatCounts(hdr.Counts))
}

func formatCounts(c summary.Counts) string {
	return fmt.Sprintf("total=%d undeleted=%d unread=%d deleted_bytes=%d",
		c.Total, c.Undeleted, c.Unread, c.DeletedBytes)
}

func mailboxArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", ErrMailboxRequired
	}

	return args[0], nil
}
