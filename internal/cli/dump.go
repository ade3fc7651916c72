package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/calvinalkan/mailsummary/internal/mbox"

	flag "github.com/spf13/pflag"
)

// DumpCmd returns the dump command.
func DumpCmd(a *app) *Command {
	flagSet := flag.NewFlagSet("dump", flag.ContinueOnError)
	readSet := flagSet.Bool("read-set", false, "Print the numbers of read messages instead of the table")
	limit := flagSet.Int("limit", 0, "Show at most N messages (0 = all)")

	return &Command{
		Flags: flagSet,
		Usage: "dump <mailbox> [flags]",
		Short: "Print a summary's header and messages",
		Long: "Load the summary of <mailbox> and print its header and message table.\n" +
			"A stale or corrupt summary prints its header only.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execDump(a, o, args, *readSet, *limit)
		},
	}
}

func execDump(a *app, o *IO, args []string, readSet bool, limit int) error {
	arg, err := mailboxArg(args)
	if err != nil {
		return err
	}

	folder, rec := a.open(arg)
	rec.Load(folder)

	st, hdr := a.classify(folder, rec)

	switch st {
	case stateMissing, stateUnsupported:
		return fmtSummaryErr(rec.Path(), st)
	case stateStale, stateCorrupt:
		o.Warn("summary is "+string(st), "run 'mailsum sync "+arg+"' to rebuild it")
		printHeader(o, rec.Path(), hdr)
		o.Printf("salvaged=%d\n", len(rec.Salvage()))

		return nil
	case stateTrusted:
	}

	if readSet {
		o.Println(folder.ReadSet().String())

		return nil
	}

	printHeader(o, rec.Path(), hdr)
	o.Println()
	printMessages(o, folder, limit)

	return nil
}

func printMessages(o *IO, folder *mbox.Folder, limit int) {
	o.Printf("%5s %10s %8s %-28s %-20s %-24s %s\n", "#", "OFFSET", "LENGTH", "FLAGS", "DATE", "FROM", "SUBJECT")

	for i, m := range folder.Messages() {
		if limit > 0 && i >= limit {
			o.Printf("... %d more\n", folder.Len()-limit)

			break
		}

		o.Printf("%5d %10d %8d %-28s %-20s %-24s %s\n",
			i+1, m.Offset, m.Length, m.Flags, formatDate(m.Date),
			clip(folder.String(m.Sender), 24), folder.String(m.Subject))
	}
}

func formatDate(d int32) string {
	if d == 0 {
		return "-"
	}

	return time.Unix(int64(d), 0).UTC().Format(time.DateTime)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}

// fmtSummaryErr describes a summary that cannot be shown at all.
func fmtSummaryErr(path string, st state) error {
	return fmt.Errorf("%w: %s: %s", ErrSummaryUnusable, path, st)
}
