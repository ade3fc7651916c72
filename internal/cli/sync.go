package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/mailsummary/internal/mbox"
	"github.com/calvinalkan/mailsummary/pkg/fs"
	"github.com/calvinalkan/mailsummary/pkg/summary"

	flag "github.com/spf13/pflag"
)

// SyncCmd returns the sync command.
func SyncCmd(a *app) *Command {
	flagSet := flag.NewFlagSet("sync", flag.ContinueOnError)
	full := flagSet.Bool("full", false, "Always rewrite the whole summary")

	return &Command{
		Flags: flagSet,
		Group: GroupMaintain,
		Usage: "sync <mailbox> [flags]",
		Short: "Bring a summary up to date with its mailbox",
		Long: "Load the summary of <mailbox>, scan what it does not cover, merge flags\n" +
			"salvaged from a stale summary and save the result.\n\n" +
			"A trusted summary that covers the whole mailbox is left alone; otherwise\n" +
			"it is rewritten. Writers of the same summary are serialized by a lock\n" +
			"file next to it.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execSync(ctx, a, o, args, *full)
		},
	}
}

type syncAction string

const (
	actionUpToDate syncAction = "up-to-date"
	actionHeader   syncAction = "updated-header"
	actionWritten  syncAction = "written"
)

// session is a mailbox whose summary is locked, loaded and brought level
// with the mailbox in memory.
type session struct {
	folder  *mbox.Folder
	rec     *summary.Record
	lock    *fs.Lock
	trusted bool
	loaded  int
	scanned int
	merged  int
}

func (a *app) begin(arg string) (*session, error) {
	folder, rec := a.open(arg)

	lock, err := fs.NewLocker(a.fs).LockWithTimeout(rec.Path()+".lock", a.cfg.LockTimeoutDur)
	if err != nil {
		return nil, fmt.Errorf("lock summary: %w", err)
	}

	s := &session{folder: folder, rec: rec, lock: lock}

	resume := rec.Load(folder)
	s.trusted = rec.Version() != 0
	s.loaded = folder.Len()

	s.scanned, err = folder.Scan(resume)
	if err != nil {
		s.end(a)

		return nil, err
	}

	s.merged = folder.ApplySalvage(rec.Salvage())
	rec.ClearSalvage()

	return s, nil
}

func (s *session) end(a *app) {
	err := s.lock.Close()
	if err != nil {
		a.log.Warn().Err(err).Str("path", s.rec.Path()).Msg("unlock summary")
	}
}

// save applies action. A mailbox too large for the format is a warning and
// leaves the summary as it was.
func (s *session) save(o *IO, action syncAction) (syncAction, error) {
	var err error

	switch action {
	case actionHeader:
		err = s.rec.UpdateHeader(s.folder)
	case actionWritten:
		err = s.rec.Write(s.folder)
	case actionUpToDate:
	}

	if errors.Is(err, summary.ErrIncompatible) {
		o.Warn("mailbox too large for the summary format", "summary left as it was")

		return actionUpToDate, nil
	}

	return action, err
}

func execSync(ctx context.Context, a *app, o *IO, args []string, full bool) error {
	arg, err := mailboxArg(args)
	if err != nil {
		return err
	}

	s, err := a.begin(arg)
	if err != nil {
		return err
	}
	defer s.end(a)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	action := actionUpToDate
	if !s.trusted || s.scanned > 0 || full {
		action = actionWritten
	}

	action, err = s.save(o, action)
	if err != nil {
		return err
	}

	a.log.Info().Str("mailbox", s.folder.Path()).Str("action", string(action)).
		Int("loaded", s.loaded).Int("scanned", s.scanned).Int("merged", s.merged).Msg("sync")

	o.Printf("mailbox=%s action=%s messages=%d scanned=%d merged=%d\n",
		s.folder.Path(), action, s.folder.Len(), s.scanned, s.merged)

	return nil
}
