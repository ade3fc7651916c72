package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// CheckCmd returns the check command.
func CheckCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("check", flag.ContinueOnError),
		Usage: "check <mailbox>",
		Short: "Report whether a summary can be trusted",
		Long: "Load the summary of <mailbox> and report its state, the offset a client\n" +
			"would resume scanning from, and how many flags a rebuild would recover.\n" +
			"Exits 1 unless the summary is trusted.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execCheck(a, o, args)
		},
	}
}

func execCheck(a *app, o *IO, args []string) error {
	arg, err := mailboxArg(args)
	if err != nil {
		return err
	}

	folder, rec := a.open(arg)
	resume := rec.Load(folder)
	st, _ := a.classify(folder, rec)

	o.Println("mailbox=" + folder.Path())
	o.Println("summary=" + rec.Path())
	o.Println("state=" + string(st))
	o.Printf("resume=%d\n", resume)
	o.Printf("messages=%d\n", folder.Len())
	o.Printf("salvaged=%d\n", len(rec.Salvage()))

	if st != stateTrusted {
		o.Warn("summary is "+string(st), "run 'mailsum sync "+arg+"'")
	}

	return nil
}
