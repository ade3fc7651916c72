// sumsh is an interactive inspector for a mailbox and its summary file.
//
// Usage:
//
//	sumsh [-s summary-file] [-v] <mailbox>
//
// The summary is loaded the way a mail client would: trusted when it still
// matches the mailbox, otherwise the mailbox is scanned and salvaged flags
// are merged. Nothing is written back.
//
// Commands (in REPL):
//
//	info                 Show summary and mailbox state
//	counts               Show the four folder counts
//	msg <n>              Show message n (1-based)
//	ls [from] [limit]    List messages
//	find <message-id>    Find a message by Message-ID
//	read-set             Show read message numbers as ranges
//	unread [limit]       List unread messages
//	salvage              Show flags salvaged from a stale summary
//	reload               Load the summary again
//	help                 Show this help
//	exit / quit / q      Exit
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/calvinalkan/mailsummary/internal/mbox"
	"github.com/calvinalkan/mailsummary/pkg/intern"
	"github.com/calvinalkan/mailsummary/pkg/summary"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("sumsh", flag.ExitOnError)
	summaryPath := fs.String("s", "", "summary file (default: <mailbox>.msf)")
	verbose := fs.Bool("v", false, "log summary diagnostics to stderr")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sumsh [options] <mailbox>\n\n")
		fmt.Fprintf(os.Stderr, "Inspect a mailbox and its summary file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing mailbox path")
	}

	mailbox := fs.Arg(0)
	if *summaryPath == "" {
		*summaryPath = mailbox + ".msf"
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	r := &REPL{mailbox: mailbox, summaryPath: *summaryPath, log: log}

	if err := r.load(); err != nil {
		return err
	}

	return r.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	mailbox     string
	summaryPath string
	log         zerolog.Logger

	folder  *mbox.Folder
	rec     *summary.Record
	resume  int64
	scanned int
	merged  int
	salvage map[intern.MessageID]summary.Flags

	liner *liner.State
}

// load reads the summary and scans whatever it does not cover.
func (r *REPL) load() error {
	r.folder = mbox.Open(r.mailbox, mbox.Options{Logger: r.log})
	r.rec = summary.NewRecord(r.summaryPath, summary.Options{Logger: r.log})

	start := time.Now()
	r.resume = r.rec.Load(r.folder)

	n, err := r.folder.Scan(r.resume)
	if err != nil {
		return err
	}

	r.scanned = n
	r.salvage = r.rec.Salvage()
	r.merged = r.folder.ApplySalvage(r.salvage)

	fmt.Printf("loaded %d messages in %s (resume=%d, scanned=%d, merged=%d)\n",
		r.folder.Len(), time.Since(start).Round(time.Microsecond), r.resume, r.scanned, r.merged)

	return nil
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".sumsh_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("sumsh - %s (summary %s)\n", r.mailbox, r.summaryPath)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("sumsh> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")

			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "info":
			r.cmdInfo()

		case "counts":
			r.cmdCounts()

		case "msg", "show":
			r.cmdMsg(args)

		case "ls", "list":
			r.cmdList(args)

		case "find":
			r.cmdFind(args)

		case "read-set":
			fmt.Println(r.folder.ReadSet().String())

		case "unread":
			r.cmdUnread(args)

		case "salvage":
			r.cmdSalvage()

		case "reload":
			if err := r.load(); err != nil {
				fmt.Printf("reload failed: %v\n", err)
			}

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

var commands = []string{
	"info", "counts", "msg", "show", "ls", "list", "find",
	"read-set", "unread", "salvage", "reload", "clear", "cls",
	"help", "exit", "quit", "q",
}

// completer provides tab completion for commands.
func (r *REPL) completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  info                 Show summary and mailbox state")
	fmt.Println("  counts               Show the four folder counts")
	fmt.Println("  msg <n>              Show message n (1-based)")
	fmt.Println("  ls [from] [limit]    List messages")
	fmt.Println("  find <message-id>    Find a message by Message-ID")
	fmt.Println("  read-set             Show read message numbers as ranges")
	fmt.Println("  unread [limit]       List unread messages")
	fmt.Println("  salvage              Show flags salvaged from a stale summary")
	fmt.Println("  reload               Load the summary again")
	fmt.Println("  help                 Show this help")
	fmt.Println("  exit / quit / q      Exit")
}

func (r *REPL) cmdInfo() {
	trusted := r.rec.Version() != 0

	fmt.Printf("Mailbox:        %s\n", r.mailbox)
	fmt.Printf("Summary:        %s\n", r.summaryPath)
	fmt.Printf("Trusted:        %v\n", trusted)

	if trusted {
		fmt.Printf("Version:        %d\n", r.rec.Version())
		fmt.Printf("Folder size:    %d\n", r.rec.FolderSize())
		fmt.Printf("Folder date:    %s\n", time.Unix(r.rec.FolderDate(), 0).Format(time.RFC3339))
		fmt.Printf("Parsed through: %d\n", r.rec.ParsedThrough())
	}

	fmt.Printf("Messages:       %d (scanned %d)\n", r.folder.Len(), r.scanned)
	fmt.Printf("Strings:        %d\n", r.folder.Tables().Strings.Len())
	fmt.Printf("Message-IDs:    %d\n", r.folder.Tables().IDs.Len())
	fmt.Printf("Salvaged:       %d (merged %d)\n", len(r.salvage), r.merged)
}

func (r *REPL) cmdCounts() {
	stored, ok := r.rec.Counts()
	live := summary.CountMessages(r.folder.Messages())

	fmt.Printf("%-14s %10s %10s\n", "", "summary", "mailbox")

	row := func(name string, s, l int64) {
		sv := "-"
		if ok {
			sv = strconv.FormatInt(s, 10)
		}

		fmt.Printf("%-14s %10s %10d\n", name, sv, l)
	}

	row("total", stored.Total, live.Total)
	row("undeleted", stored.Undeleted, live.Undeleted)
	row("unread", stored.Unread, live.Unread)
	row("deleted bytes", stored.DeletedBytes, live.DeletedBytes)
}

// parseNumber parses a 1-based message number.
func (r *REPL) parseNumber(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > r.folder.Len() {
		fmt.Printf("No message %q (have %d)\n", s, r.folder.Len())

		return 0, false
	}

	return n, true
}

func (r *REPL) cmdMsg(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: msg <n>")

		return
	}

	n, ok := r.parseNumber(args[0])
	if !ok {
		return
	}

	m := r.folder.Messages()[n-1]

	fmt.Printf("Number:        %d\n", n)
	fmt.Printf("From:          %s\n", r.folder.String(m.Sender))
	fmt.Printf("To:            %s\n", r.folder.String(m.Recipient))
	fmt.Printf("Subject:       %s\n", r.folder.String(m.Subject))
	fmt.Printf("Date:          %s\n", formatDate(m.Date))
	fmt.Printf("Flags:         %s (status %04x)\n", m.Flags, m.Flags.Status())
	fmt.Printf("Offset:        %d\n", m.Offset)
	fmt.Printf("Length:        %d\n", m.Length)
	fmt.Printf("Status offset: %d\n", m.StatusOffset)
	fmt.Printf("Lines:         %d\n", m.Lines)
	fmt.Printf("Message-ID:    %s\n", r.folder.MessageID(m.ID))

	if len(m.Refs) > 0 {
		refs := make([]string, 0, len(m.Refs))
		for _, ref := range m.Refs {
			refs = append(refs, r.folder.MessageID(ref).String())
		}

		fmt.Printf("References:    %s\n", strings.Join(refs, " "))
	}
}

func (r *REPL) cmdList(args []string) {
	from, limit := 1, 20

	if len(args) > 0 {
		n, ok := r.parseNumber(args[0])
		if !ok {
			return
		}

		from = n
	}

	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil && v > 0 {
			limit = v
		}
	}

	msgs := r.folder.Messages()
	end := min(len(msgs), from-1+limit)

	for i := from - 1; i < end; i++ {
		r.printLine(i+1, msgs[i])
	}

	if end < len(msgs) {
		fmt.Printf("... %d more (ls %d)\n", len(msgs)-end, end+1)
	}
}

func (r *REPL) cmdFind(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: find <message-id>")

		return
	}

	i, ok := r.folder.Find(args[0])
	if !ok {
		fmt.Printf("No message with id %s (hash %s)\n", args[0], intern.HashMessageID(args[0]))

		return
	}

	r.printLine(i+1, r.folder.Messages()[i])
}

func (r *REPL) cmdUnread(args []string) {
	limit := 20
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			limit = v
		}
	}

	shown := 0

	for i, m := range r.folder.Messages() {
		if m.Flags.Has(summary.FlagRead) || m.Flags.Has(summary.FlagDeleted) {
			continue
		}

		if shown == limit {
			fmt.Println("...")

			break
		}

		r.printLine(i+1, m)
		shown++
	}

	if shown == 0 {
		fmt.Println("(no unread messages)")
	}
}

func (r *REPL) cmdSalvage() {
	if len(r.salvage) == 0 {
		fmt.Println("(nothing salvaged)")

		return
	}

	ids := make([]intern.MessageID, 0, len(r.salvage))
	for id := range r.salvage {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	for _, id := range ids {
		fmt.Printf("%s  %s\n", id, r.salvage[id])
	}
}

func (r *REPL) printLine(n int, m *summary.Message) {
	fmt.Printf("%5d  %-20s  %-24s  %-22s  %s\n",
		n, formatDate(m.Date), clip(r.folder.String(m.Sender), 24), clip(m.Flags.String(), 22),
		r.folder.String(m.Subject))
}

func formatDate(d int32) string {
	if d == 0 {
		return "-"
	}

	return time.Unix(int64(d), 0).Format(time.DateTime)
}

func clip(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}

	return string(rs[:n-1]) + "…"
}
