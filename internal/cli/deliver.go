package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/calvinalkan/mailsummary/pkg/fs"
	"github.com/calvinalkan/mailsummary/pkg/summary"

	flag "github.com/spf13/pflag"
)

// DeliverCmd returns the deliver command.
func DeliverCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("deliver", flag.ContinueOnError),
		Group: GroupMaintain,
		Usage: "deliver <mailbox> [message-file]",
		Short: "Append a message and keep the summary current",
		Long: "Append one message, read from [message-file] or stdin, to <mailbox>.\n" +
			"A \"From \" separator is added when the message has none and body lines\n" +
			"starting with \"From \" are quoted.\n\n" +
			"If the summary was trusted and is in the current format only its header\n" +
			"is patched, so the message is rescanned on the next load. Otherwise the\n" +
			"summary is rewritten.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execDeliver(a, o, args)
		},
	}
}

func execDeliver(a *app, o *IO, args []string) error {
	arg, err := mailboxArg(args)
	if err != nil {
		return err
	}

	msg, err := a.readMessage(args[1:])
	if err != nil {
		return err
	}

	path := a.cfg.resolveMailbox(arg)

	// A new mailbox starts empty.
	file, err := a.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("open mailbox: %w", err)
	}

	_ = file.Close()

	s, err := a.begin(arg)
	if err != nil {
		return err
	}
	defer s.end(a)

	from := s.folder.ParsedThrough()

	err = appendMessage(a.fs, path, quoteMessage(msg, time.Now()))
	if err != nil {
		return err
	}

	n, err := s.folder.Scan(from)
	if err != nil {
		return err
	}

	action := actionWritten
	if s.trusted && s.rec.Version() == summary.VersionCurrent {
		action = actionHeader
	}

	action, err = s.save(o, action)
	if err != nil {
		return err
	}

	a.log.Info().Str("mailbox", path).Str("action", string(action)).Int("delivered", n).Msg("deliver")

	o.Printf("mailbox=%s action=%s messages=%d delivered=%d\n", path, action, s.folder.Len(), n)

	return nil
}

func (a *app) readMessage(args []string) ([]byte, error) {
	var (
		msg []byte
		err error
	)

	switch {
	case len(args) > 0 && args[0] != "-":
		msg, err = a.fs.ReadFile(a.cfg.resolveMailbox(args[0]))
	case a.stdin != nil:
		msg, err = io.ReadAll(a.stdin)
	}

	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	if len(bytes.TrimSpace(msg)) == 0 {
		return nil, ErrMessageRequired
	}

	return msg, nil
}

// quoteMessage turns msg into an mbox entry: a separator line first, body
// lines starting with "From " prefixed with '>', and a final newline.
func quoteMessage(msg []byte, now time.Time) []byte {
	var out bytes.Buffer

	lines := bytes.SplitAfter(msg, []byte("\n"))

	if bytes.HasPrefix(msg, []byte("From ")) {
		out.Write(lines[0])
		lines = lines[1:]
	} else {
		out.WriteString("From mailsum " + now.UTC().Format(time.ANSIC) + "\n")
	}

	for _, line := range lines {
		if bytes.HasPrefix(line, []byte("From ")) {
			out.WriteByte('>')
		}

		out.Write(line)
	}

	if !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
		out.WriteByte('\n')
	}

	return out.Bytes()
}

// appendMessage appends entry to the mailbox, starting it on a new line.
func appendMessage(fsys fs.FS, path string, entry []byte) error {
	file, err := fsys.OpenFile(path, os.O_RDWR|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("open mailbox: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return fmt.Errorf("stat mailbox: %w", err)
	}

	if info.Size() > 0 {
		var last [1]byte

		_, err = file.Seek(-1, io.SeekEnd)
		if err == nil {
			_, err = io.ReadFull(file, last[:])
		}

		if err != nil {
			_ = file.Close()

			return fmt.Errorf("read mailbox end: %w", err)
		}

		if last[0] != '\n' {
			entry = append([]byte{'\n'}, entry...)
		}
	}

	_, err = file.Write(entry)
	if err == nil {
		err = file.Sync()
	}

	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("append to mailbox: %w", err)
	}

	return nil
}
