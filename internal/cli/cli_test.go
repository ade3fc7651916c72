package cli_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/mailsummary/internal/cli"
)

const inbox = "From a@example.org Fri Mar  1 12:00:00 2024\n" +
	"From: a@example.org\n" +
	"Subject: first\n" +
	"Message-ID: <one@example.org>\n" +
	"X-Mozilla-Status: 0001\n" +
	"\n" +
	"hello\n" +
	"\n" +
	"From b@example.org Fri Mar  1 12:05:00 2024\n" +
	"From: b@example.org\n" +
	"Subject: second\n" +
	"Message-ID: <two@example.org>\n" +
	"\n" +
	"world\n" +
	"\n"

const appended = "From c@example.org Fri Mar  1 12:10:00 2024\n" +
	"From: c@example.org\n" +
	"Subject: third\n" +
	"Message-ID: <three@example.org>\n" +
	"X-Status: D\n" +
	"\n" +
	"late\n"

func Test_Usage_Lists_Commands(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	out := c.MustRun("--help")
	for _, name := range []string{"dump", "counts", "check", "sync", "deliver", "salvage", "init-config", "print-config"} {
		cli.AssertContains(t, out, "  "+name)
	}

	inspect := strings.Index(out, "Inspect (read-only):")
	maintain := strings.Index(out, "Maintain (takes the summary lock):")
	config := strings.Index(out, "Configuration:")

	require.True(t, inspect >= 0 && maintain > inspect && config > maintain, out)
	assert.Less(t, strings.Index(out, "  check"), maintain)
	assert.Greater(t, strings.Index(out, "  deliver"), maintain)
	assert.Less(t, strings.Index(out, "  deliver"), config)
	assert.Greater(t, strings.Index(out, "  print-config"), config)
}

func Test_Unknown_Command_And_Flag(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	cli.AssertContains(t, c.MustFail("frobnicate"), "unknown command: frobnicate")
	cli.AssertContains(t, c.MustFail("--nope", "check"), "unknown flag: --nope")
	cli.AssertContains(t, c.MustFail("check"), "mailbox path is required")
	cli.AssertContains(t, c.MustFail("--config"), "flag requires an argument")
}

func Test_Command_Help(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	out := c.MustRun("sync", "--help")
	cli.AssertContains(t, out, "Usage: mailsum sync <mailbox>")
	cli.AssertContains(t, out, "--full")
	cli.AssertContains(t, out, "Waits up to lock_timeout")

	cli.AssertNotContains(t, c.MustRun("dump", "--help"), "lock_timeout")
}

func Test_Sync_Check_Counts_Cycle(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("Inbox", inbox)

	out := c.MustRun("sync", "Inbox")
	cli.AssertContains(t, out, "action=written messages=2 scanned=2")

	_, err := os.Stat(filepath.Join(c.Dir, "Inbox.msf"))
	require.NoError(t, err)

	out = c.MustRun("check", "Inbox")
	cli.AssertContains(t, out, "state=trusted")
	cli.AssertContains(t, out, "resume="+strconv.Itoa(len(inbox)))
	cli.AssertContains(t, out, "messages=2")

	out = c.MustRun("sync", "Inbox")
	cli.AssertContains(t, out, "action=up-to-date")

	c.WriteFile("msg.eml", appended)

	out = c.MustRun("deliver", "Inbox", "msg.eml")
	cli.AssertContains(t, out, "action=updated-header messages=3 delivered=1")
	assert.Equal(t, inbox+appended, c.ReadFile("Inbox"))

	out = c.MustRun("counts", "Inbox")
	assert.Equal(t, "Inbox total=3 undeleted=2 unread=2 deleted_bytes="+strconv.Itoa(len(appended)), out)

	// The patched header is trusted; the delivered message is rescanned.
	out = c.MustRun("check", "Inbox")
	cli.AssertContains(t, out, "state=trusted")
	cli.AssertContains(t, out, "resume="+strconv.Itoa(len(inbox)))
	cli.AssertContains(t, out, "messages=2")

	out = c.MustRun("sync", "Inbox")
	cli.AssertContains(t, out, "action=written messages=3 scanned=1")

	out = c.MustRun("check", "Inbox")
	cli.AssertContains(t, out, "resume="+strconv.Itoa(len(inbox+appended)))

	out = c.MustRun("sync", "--full", "Inbox")
	cli.AssertContains(t, out, "action=written messages=3 scanned=0")

	out = c.MustRun("dump", "Inbox")
	cli.AssertContains(t, out, "version=6")
	cli.AssertContains(t, out, "total=3 undeleted=2 unread=2")
	cli.AssertContains(t, out, "first")
	cli.AssertContains(t, out, "third")

	assert.Equal(t, "1", c.MustRun("dump", "--read-set", "Inbox"))

	_, err = os.Stat(filepath.Join(c.Dir, "Inbox.msf.lock"))
	require.NoError(t, err, "sync leaves its lock file")
}

func Test_Stale_Summary_Is_Reported_And_Salvaged(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("Inbox", inbox)
	c.MustRun("sync", "Inbox")
	c.AppendFile("Inbox", appended)

	stdout, stderr, code := c.Run("check", "Inbox")
	assert.Equal(t, 1, code)
	cli.AssertContains(t, stdout, "state=stale")
	cli.AssertContains(t, stdout, "resume=0")
	cli.AssertContains(t, stdout, "salvaged=2")
	cli.AssertContains(t, stderr, "warning: summary is stale")

	out := c.MustRun("salvage", "--out", "flags.json", "Inbox")
	cli.AssertContains(t, out, "salvaged=2")

	var entries map[string]struct {
		Status string `json:"status"`
		Flags  string `json:"flags"`
	}

	require.NoError(t, json.Unmarshal([]byte(c.ReadFile("flags.json")), &entries))
	require.Len(t, entries, 2)

	var flags []string
	for _, e := range entries {
		flags = append(flags, e.Flags)
	}

	assert.ElementsMatch(t, []string{"read", "-"}, flags)

	// A stale dump still shows the stored header.
	stdout, _, code = c.Run("dump", "Inbox")
	assert.Equal(t, 1, code)
	cli.AssertContains(t, stdout, "total=2")
}

func Test_Deliver_Quotes_And_Creates_Mailbox(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("msg.eml", "Subject: plain\nMessage-ID: <p@x>\n\nFrom the start\nbody")

	out := c.MustRun("deliver", "New", "msg.eml")
	cli.AssertContains(t, out, "action=written messages=1 delivered=1")

	mailbox := c.ReadFile("New")
	assert.True(t, strings.HasPrefix(mailbox, "From mailsum "), mailbox)
	cli.AssertContains(t, mailbox, "\n>From the start\nbody\n")

	// Second delivery lands on a trusted summary.
	out = c.MustRun("deliver", "New", "msg.eml")
	cli.AssertContains(t, out, "action=updated-header messages=2 delivered=1")

	c.WriteFile("empty.eml", " \n")
	cli.AssertContains(t, c.MustFail("deliver", "New", "empty.eml"), "message is empty")
}

func Test_Counts_Many_Mailboxes(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	var names []string

	for i := range 6 {
		name := "box" + strconv.Itoa(i)
		c.WriteFile(name, strings.Repeat(inbox, i+1))
		c.MustRun("sync", name)

		names = append(names, name)
	}

	stdout, stderr, code := c.Run(append([]string{"counts"}, append(names, "missing")...)...)
	assert.Equal(t, 1, code)
	cli.AssertContains(t, stderr, "missing: no usable summary")

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, len(names))

	for i, line := range lines {
		want := names[i] + " total=" + strconv.Itoa(2*(i+1))
		assert.True(t, strings.HasPrefix(line, want), "line %d: %q", i, line)
	}
}

func Test_Summary_Dir_From_Config(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("Inbox", inbox)
	c.WriteFile(cli.ConfigFileName, `{
		// comments are fine
		"summary_dir": "cache",
		"summary_suffix": ".sum",
	}`)

	c.MustRun("sync", "Inbox")

	_, err := os.Stat(filepath.Join(c.Dir, "cache", "Inbox.sum"))
	require.NoError(t, err)

	out := c.MustRun("print-config")
	cli.AssertContains(t, out, "summary_dir="+filepath.Join(c.Dir, "cache"))
	cli.AssertContains(t, out, "summary_suffix=.sum")
	cli.AssertContains(t, out, "project_config="+filepath.Join(c.Dir, cli.ConfigFileName))
}

func Test_Init_Config(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	c.MustRun("init-config")
	cli.AssertContains(t, c.ReadFile(cli.ConfigFileName), `"summary_suffix": ".msf"`)

	cli.AssertContains(t, c.MustFail("init-config"), "config file already exists")
	c.MustRun("init-config", "--force")

	out := c.MustRun("print-config")
	cli.AssertContains(t, out, "workers=4")
	cli.AssertContains(t, out, "lock_timeout=2s")
}
