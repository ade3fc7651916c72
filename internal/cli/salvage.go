package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/natefinch/atomic"

	flag "github.com/spf13/pflag"
)

// SalvageCmd returns the salvage command.
func SalvageCmd(a *app) *Command {
	flagSet := flag.NewFlagSet("salvage", flag.ContinueOnError)
	out := flagSet.StringP("out", "o", "", "Write JSON to `file` instead of stdout")

	return &Command{
		Flags: flagSet,
		Usage: "salvage <mailbox> [flags]",
		Short: "Export flags recoverable from a stale summary",
		Long: "Decode the summary of <mailbox> without trusting it and export the flags\n" +
			"of every message as JSON, keyed by Message-ID hash. A trusted summary\n" +
			"has nothing to salvage and exports an empty object.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execSalvage(a, o, args, *out)
		},
	}
}

type salvageEntry struct {
	Status string `json:"status"`
	Flags  string `json:"flags"`
}

func execSalvage(a *app, o *IO, args []string, out string) error {
	arg, err := mailboxArg(args)
	if err != nil {
		return err
	}

	folder, rec := a.open(arg)
	rec.Load(folder)

	entries := make(map[string]salvageEntry)
	for id, flags := range rec.Salvage() {
		entries[id.String()] = salvageEntry{
			Status: fmt.Sprintf("%04x", flags.Status()),
			Flags:  flags.String(),
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode salvage: %w", err)
	}

	data = append(data, '\n')

	if out == "" {
		o.Printf("%s", data)

		return nil
	}

	if !filepath.IsAbs(out) {
		out = filepath.Join(a.cfg.EffectiveCwd, out)
	}

	err = atomic.WriteFile(out, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	o.Printf("salvaged=%d out=%s\n", len(entries), out)

	return nil
}
