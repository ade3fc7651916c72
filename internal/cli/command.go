package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Group decides where a command is listed in the usage text.
type Group int

const (
	// GroupInspect commands only read mailboxes and summaries.
	GroupInspect Group = iota
	// GroupMaintain commands write summaries or mailboxes under the
	// summary lock.
	GroupMaintain
	// GroupConfig commands deal with configuration files.
	GroupConfig
)

var groupTitles = [...]string{
	GroupInspect:  "Inspect (read-only)",
	GroupMaintain: "Maintain (takes the summary lock)",
	GroupConfig:   "Configuration",
}

func (g Group) String() string { return groupTitles[g] }

// Command is one mailsum subcommand.
//
// Its name is the first word of Usage; the FlagSet name is only used by
// pflag in its own messages.
type Command struct {
	Flags *flag.FlagSet
	Group Group

	// Usage follows "mailsum" in help, e.g. "counts <mailbox>...".
	Usage string
	Short string
	// Long replaces Short in "mailsum <cmd> --help" when set.
	Long string

	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine is the command's row in the usage listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// PrintHelp writes "mailsum <cmd> --help" output.
func (c *Command) PrintHelp(o *IO) {
	o.Printf("Usage: mailsum %s\n\n", c.Usage)

	if c.Long != "" {
		o.Println(c.Long)
	} else {
		o.Println(c.Short)
	}

	if c.Group == GroupMaintain {
		o.Println()
		o.Println("Waits up to lock_timeout for other writers of the same summary.")
	}

	if c.Flags == nil || !c.Flags.HasFlags() {
		return
	}

	var buf strings.Builder

	c.Flags.SetOutput(&buf)
	c.Flags.PrintDefaults()

	o.Println()
	o.Println("Flags:")
	o.Printf("%s", buf.String())
}

// Run parses args, executes the command and returns its exit code. Errors
// and warnings go to stderr; a warning alone also makes the exit code 1.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}

// groupCommands returns cmds bucketed by group, keeping their order.
func groupCommands(cmds []*Command) [len(groupTitles)][]*Command {
	var out [len(groupTitles)][]*Command

	for _, c := range cmds {
		out[c.Group] = append(out[c.Group], c)
	}

	return out
}
