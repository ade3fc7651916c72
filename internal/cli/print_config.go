package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Group: GroupConfig,
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, a.cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("summary_suffix=" + cfg.SummarySuffix)

	if cfg.SummaryDirAbs != "" {
		io.Println("summary_dir=" + cfg.SummaryDirAbs)
	} else {
		io.Println("summary_dir=(next to mailbox)")
	}

	io.Println("log_level=" + cfg.Level.String())
	io.Println("lock_timeout=" + cfg.LockTimeoutDur.String())
	io.Println("workers=" + strconv.Itoa(cfg.Workers))

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
