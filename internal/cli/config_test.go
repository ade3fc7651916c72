package cli_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calvinalkan/mailsummary/internal/cli"
)

func Test_Print_Config_Defaults_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "effective_cwd="+c.Dir)
	cli.AssertContains(t, stdout, "summary_suffix=.msf")
	cli.AssertContains(t, stdout, "summary_dir=(next to mailbox)")
	cli.AssertContains(t, stdout, "log_level=warn")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Print_Config_Project_Overrides_Global_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	global := c.WriteFile(".config/mailsum/config.json", `{"summary_suffix": ".g", "workers": 9, "summary_dir": "/var/cache/mail"}`)
	c.WriteFile(cli.ConfigFileName, `{"summary_suffix": ".p"}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "summary_suffix=.p")
	cli.AssertContains(t, stdout, "workers=9")
	cli.AssertContains(t, stdout, "summary_dir=/var/cache/mail")
	cli.AssertContains(t, stdout, "global_config="+global)
}

func Test_Print_Config_Empty_Summary_Dir_Resets_Global_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".config/mailsum/config.json", `{"summary_dir": "/var/cache/mail"}`)
	c.WriteFile(cli.ConfigFileName, `{"summary_dir": ""}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "summary_dir=(next to mailbox)")
}

func Test_Print_Config_Explicit_Config_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(cli.ConfigFileName, `{"summary_suffix": ".project"}`)
	custom := c.WriteFile("custom.json", `{"lock_timeout": "150ms"}`)

	for _, args := range [][]string{
		{"-c", "custom.json", "print-config"},
		{"--config=custom.json", "print-config"},
	} {
		stdout := c.MustRun(args...)
		cli.AssertContains(t, stdout, "lock_timeout=150ms")
		cli.AssertContains(t, stdout, "summary_suffix=.msf")
		cli.AssertContains(t, stdout, "project_config="+custom)
	}
}

func Test_Print_Config_Log_Level_Flag_Wins_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(cli.ConfigFileName, `{"log_level": "error"}`)

	stdout := c.MustRun("--log-level", "DEBUG", "print-config")
	cli.AssertContains(t, stdout, "log_level=debug")
}

func Test_Config_Errors_When_Invoked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  string
		args    []string
		wantErr string
	}{
		{name: "invalid json", config: `{invalid json}`, wantErr: "invalid config file"},
		{name: "wrong type", config: `{"workers": "many"}`, wantErr: "invalid config file"},
		{name: "negative workers", config: `{"workers": -1}`, wantErr: "workers must be at least 1"},
		{name: "suffix with separator", config: `{"summary_suffix": "/x"}`, wantErr: "summary_suffix must be"},
		{name: "bad timeout", config: `{"lock_timeout": "soon"}`, wantErr: "lock_timeout must be a positive duration"},
		{name: "zero timeout", config: `{"lock_timeout": "0s"}`, wantErr: "lock_timeout must be a positive duration"},
		{name: "bad level", config: `{"log_level": "loud"}`, wantErr: "invalid log level"},
		{name: "bad level flag", args: []string{"--log-level", "loud"}, wantErr: "invalid log level"},
		{name: "missing explicit", args: []string{"-c", "nonexistent.json"}, wantErr: "config file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			if tt.config != "" {
				c.WriteFile(cli.ConfigFileName, tt.config)
			}

			stderr := c.MustFail(append(tt.args, "print-config")...)
			cli.AssertContains(t, stderr, tt.wantErr)
		})
	}
}

func Test_Summary_Path(t *testing.T) {
	t.Parallel()

	cfg := cli.Config{SummarySuffix: ".msf"}
	assert.Equal(t, filepath.FromSlash("/mail/Inbox.msf"), cfg.SummaryPath(filepath.FromSlash("/mail/Inbox")))

	cfg.SummaryDirAbs = filepath.FromSlash("/cache")
	assert.Equal(t, filepath.FromSlash("/cache/Inbox.msf"), cfg.SummaryPath(filepath.FromSlash("/mail/Inbox")))
}
