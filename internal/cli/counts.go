package cli

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/calvinalkan/mailsummary/pkg/summary"

	flag "github.com/spf13/pflag"
)

// CountsCmd returns the counts command.
func CountsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("counts", flag.ContinueOnError),
		Usage: "counts <mailbox>...",
		Short: "Print folder counts from summary headers",
		Long: "Read only the header of each mailbox's summary and print its four counts.\n" +
			"Summaries are read in parallel, up to the configured number of workers.\n" +
			"Counts are shown as stored, even when the summary is stale.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execCounts(ctx, a, o, args)
		},
	}
}

type countResult struct {
	mailbox string
	counts  summary.Counts
	ok      bool
}

func execCounts(ctx context.Context, a *app, o *IO, args []string) error {
	if len(args) == 0 {
		return ErrMailboxRequired
	}

	results := make([]countResult, len(args))
	p := pool.New().WithMaxGoroutines(a.cfg.Workers).WithContext(ctx)

	for i, arg := range args {
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			_, rec := a.open(arg)
			c, ok := rec.Counts()
			results[i] = countResult{mailbox: arg, counts: c, ok: ok}

			return nil
		})
	}

	err := p.Wait()
	if err != nil {
		return err
	}

	for _, r := range results {
		if !r.ok {
			o.Warn(r.mailbox+": no usable summary", "run 'mailsum sync "+r.mailbox+"'")

			continue
		}

		o.Printf("%s %s\n", r.mailbox, formatCounts(r.counts))
	}

	return nil
}
