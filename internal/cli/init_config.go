package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	flag "github.com/spf13/pflag"
)

// InitConfigCmd returns the init-config command.
func InitConfigCmd(a *app) *Command {
	flagSet := flag.NewFlagSet("init-config", flag.ContinueOnError)
	force := flagSet.BoolP("force", "f", false, "Overwrite an existing config file")

	return &Command{
		Flags: flagSet,
		Group: GroupConfig,
		Usage: "init-config [flags]",
		Short: "Write a commented default " + ConfigFileName,
		Long:  "Write " + ConfigFileName + " with every option at its default into the working directory.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execInitConfig(a, o, *force)
		},
	}
}

func execInitConfig(a *app, o *IO, force bool) error {
	path := filepath.Join(a.cfg.EffectiveCwd, ConfigFileName)

	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
		}

		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}

	err := atomic.WriteFile(path, strings.NewReader(defaultConfigFile))
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	o.Println("wrote " + path)

	return nil
}
