package cli

import "errors"

// Error variables for configuration and argument handling.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrSuffixInvalid      = errors.New("summary_suffix must be a non-empty file name suffix")
	ErrWorkersInvalid     = errors.New("workers must be at least 1")
	ErrLogLevelInvalid    = errors.New("invalid log level")
	ErrLockTimeoutInvalid = errors.New("lock_timeout must be a positive duration")
	ErrFlagRequiresArg    = errors.New("flag requires an argument")
	ErrUnknownFlag        = errors.New("unknown flag")
	ErrMailboxRequired    = errors.New("mailbox path is required")
	ErrConfigExists       = errors.New("config file already exists")
	ErrMessageRequired    = errors.New("message is empty")
	ErrSummaryUnusable    = errors.New("summary not usable")
)
