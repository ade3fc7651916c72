package summary_test

import (
	"testing"

	"github.com/calvinalkan/mailsummary/pkg/summary"
)

func Test_Flags_Status_Translation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status uint32
		flags  summary.Flags
		str    string
	}{
		{status: 0, flags: 0, str: "-"},
		{status: 0x0001, flags: summary.FlagRead, str: "read"},
		{status: 0x0003, flags: summary.FlagRead | summary.FlagReplied, str: "read|replied"},
		{status: 0x0008, flags: summary.FlagDeleted, str: "deleted"},
		{status: 0x1010, flags: summary.FlagHasRe | summary.FlagForwarded, str: "has-re|forwarded"},
		{status: 0x6000, flags: summary.Flags(0).WithPriority(3), str: "prio=3"},
		{status: 0xE004, flags: summary.FlagFlagged.WithPriority(7), str: "flagged|prio=7"},
	}

	for _, tt := range tests {
		got := summary.FlagsFromStatus(tt.status)
		if got != tt.flags {
			t.Errorf("FlagsFromStatus(%#x)=%v, want %v", tt.status, got, tt.flags)
		}

		if back := got.Status(); back != tt.status {
			t.Errorf("Status() of %v=%#x, want %#x", got, back, tt.status)
		}

		if got.String() != tt.str {
			t.Errorf("String()=%q, want %q", got.String(), tt.str)
		}
	}
}

func Test_FlagsFromStatus_Drops_Unknown_Bits(t *testing.T) {
	t.Parallel()

	got := summary.FlagsFromStatus(0x0040 | 0x0001)
	if got != summary.FlagRead {
		t.Fatalf("got %v, want read", got)
	}
}

func Test_WithPriority_Masks_To_Three_Bits(t *testing.T) {
	t.Parallel()

	f := summary.FlagRead.WithPriority(9)
	if f.Priority() != 1 || !f.Has(summary.FlagRead) {
		t.Fatalf("got %v", f)
	}

	if f.WithPriority(0) != summary.FlagRead {
		t.Fatalf("clearing priority: got %v", f.WithPriority(0))
	}
}

func Test_CountMessages(t *testing.T) {
	t.Parallel()

	msgs := []*summary.Message{
		{Flags: summary.FlagRead, Length: 10},
		{Flags: summary.FlagDeleted, Length: 20},
		{Flags: summary.FlagDeleted | summary.FlagRead, Length: 40},
		{Length: 80},
	}

	got := summary.CountMessages(msgs)
	want := summary.Counts{Total: 4, Undeleted: 2, Unread: 2, DeletedBytes: 60}

	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
