package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/mailsummary/pkg/fs"
)

const (
	minArgs      = 2
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

// app is what every command needs.
type app struct {
	cfg   Config
	log   zerolog.Logger
	fs    fs.FS
	stdin io.Reader
}

func commands(a *app) []*Command {
	return []*Command{
		DumpCmd(a),
		CountsCmd(a),
		CheckCmd(a),
		SyncCmd(a),
		DeliverCmd(a),
		SalvageCmd(a),
		InitConfigCmd(a),
		PrintConfigCmd(a),
	}
}

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. A signal on it cancels the command's context.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) < minArgs {
		printUsage(out, commands(&app{}))

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if len(flags.remaining) == 0 || flags.remaining[0] == "-h" || flags.remaining[0] == helpFlag {
		printUsage(out, commands(&app{}))

		return 0
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDirOverride:  flags.workDir,
		ConfigPath:       flags.configPath,
		LogLevelOverride: flags.logLevel,
		Env:              env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	a := &app{
		cfg:   cfg,
		log:   newLogger(errOut, cfg.Level),
		fs:    fs.NewReal(),
		stdin: stdin,
	}

	name := flags.remaining[0]

	var cmd *Command

	for _, c := range commands(a) {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, commands(a))

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, NewIO(out, errOut), flags.remaining[1:])
}

type globalFlags struct {
	workDir    string
	configPath string
	logLevel   string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	value := func(long string, dst *string) (int, bool, error) {
		if arg == long || (long == "--cwd" && arg == "-C") || (long == "--config" && arg == "-c") {
			if idx+1 >= len(args) {
				return consumedNone, true, fmt.Errorf("%w: %s", ErrFlagRequiresArg, arg)
			}

			*dst = args[idx+1]

			return consumedTwo, true, nil
		}

		if after, ok := strings.CutPrefix(arg, long+"="); ok {
			*dst = after

			return consumedOne, true, nil
		}

		return consumedNone, false, nil
	}

	for _, f := range []struct {
		long string
		dst  *string
	}{
		{"--cwd", &flags.workDir},
		{"--config", &flags.configPath},
		{"--log-level", &flags.logLevel},
	} {
		n, matched, err := value(f.long, f.dst)
		if matched {
			return n, err
		}
	}

	if after, ok := strings.CutPrefix(arg, "-C"); ok && after != "" {
		flags.workDir = after

		return consumedOne, nil
	}

	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", ErrUnknownFlag, arg)
	}

	return consumedNone, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, cmds []*Command) {
	fprintln(w, `mailsum - inspect and maintain mail folder summary files

Usage: mailsum [options] <command> [args]

Options:
  -C, --cwd <dir>        Run as if started in <dir>
  -c, --config <file>    Use specified config file
  --log-level <level>    trace, debug, info, warn or error`)

	for g, group := range groupCommands(cmds) {
		if len(group) == 0 {
			continue
		}

		fprintln(w)
		fprintln(w, Group(g).String()+":")

		for _, c := range group {
			fprintln(w, c.HelpLine())
		}
	}
}
