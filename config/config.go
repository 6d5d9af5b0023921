package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Config captures all command-line options required to run the exporter.
// Nothing in the parsing core reads configuration implicitly; everything
// flows through this struct.
type Config struct {
	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	UseTLS             bool
	InsecureSkipVerify bool

	Mailbox       string
	SubjectFilter string

	MboxPath string

	CSVPath  string
	StateDir string

	DryRun   bool
	LogLevel string
	LogDir   string

	OnlyTypes    []string
	ExcludeTypes []string
	IncludeBody  []string
	ExcludeBody  []string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	flags.String("imap-host", "imap.mail.me.com", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username (falls back to ICLOUD_USER env var)")
	flags.String("imap-pass", "", "IMAP password (falls back to ICLOUD_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("mailbox", "INBOX/Grab", "IMAP mailbox/folder containing Grab receipts")
	flags.String("subject-filter", "Your Grab E-Receipt", "IMAP SUBJECT search filter (empty disables)")
	flags.String("mbox", "", "Read receipts from an .mbox export instead of IMAP")
	flags.String("csv", "data/grab_receipts.csv", "Path to the output CSV ledger")
	flags.String("state-dir", defaultStateDir, "Directory for the resume cursor file")
	flags.Bool("dry-run", false, "Parse and report without writing the CSV or the cursor")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (in addition to stdout)")
	flags.StringArray("only-type", nil, "Export only these service types (mutually exclusive with --exclude-type)")
	flags.StringArray("exclude-type", nil, "Skip these service types (mutually exclusive with --only-type)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to decoded message text")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to decoded message text")

	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	imapHost, err := flags.GetString("imap-host")
	if err != nil {
		return Config{}, err
	}
	imapPort, err := flags.GetInt("imap-port")
	if err != nil {
		return Config{}, err
	}
	imapUser, err := flags.GetString("imap-user")
	if err != nil {
		return Config{}, err
	}
	imapPass, err := flags.GetString("imap-pass")
	if err != nil {
		return Config{}, err
	}
	useTLS, err := flags.GetBool("use-tls")
	if err != nil {
		return Config{}, err
	}
	insecureSkipVerify, err := flags.GetBool("insecure-skip-verify")
	if err != nil {
		return Config{}, err
	}
	mailbox, err := flags.GetString("mailbox")
	if err != nil {
		return Config{}, err
	}
	subjectFilter, err := flags.GetString("subject-filter")
	if err != nil {
		return Config{}, err
	}
	mboxPath, err := flags.GetString("mbox")
	if err != nil {
		return Config{}, err
	}
	csvPath, err := flags.GetString("csv")
	if err != nil {
		return Config{}, err
	}
	stateDir, err := flags.GetString("state-dir")
	if err != nil {
		return Config{}, err
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	onlyTypes, err := flags.GetStringArray("only-type")
	if err != nil {
		return Config{}, err
	}
	excludeTypes, err := flags.GetStringArray("exclude-type")
	if err != nil {
		return Config{}, err
	}
	includeBody, err := flags.GetStringArray("include-body")
	if err != nil {
		return Config{}, err
	}
	excludeBody, err := flags.GetStringArray("exclude-body")
	if err != nil {
		return Config{}, err
	}

	if imapUser == "" {
		imapUser = os.Getenv("ICLOUD_USER")
	}
	if imapPass == "" {
		imapPass = os.Getenv("ICLOUD_PASS")
	}

	if stateDir == "" {
		stateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		IMAPHost:           imapHost,
		IMAPPort:           imapPort,
		IMAPUser:           imapUser,
		IMAPPass:           imapPass,
		UseTLS:             useTLS,
		InsecureSkipVerify: insecureSkipVerify,
		Mailbox:            mailbox,
		SubjectFilter:      subjectFilter,
		MboxPath:           mboxPath,
		CSVPath:            csvPath,
		StateDir:           filepath.Clean(stateDir),
		DryRun:             dryRun,
		LogLevel:           logLevel,
		LogDir:             logDir,
		OnlyTypes:          onlyTypes,
		ExcludeTypes:       excludeTypes,
		IncludeBody:        includeBody,
		ExcludeBody:        excludeBody,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.MboxPath == "" {
		if cfg.IMAPHost == "" {
			return fmt.Errorf("--imap-host is required")
		}
		if cfg.IMAPUser == "" {
			return fmt.Errorf("IMAP username must be provided via --imap-user or ICLOUD_USER env var")
		}
		if cfg.IMAPPass == "" {
			return fmt.Errorf("IMAP password must be provided via --imap-pass or ICLOUD_PASS env var")
		}
		if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
			return fmt.Errorf("--imap-port must be between 1 and 65535")
		}
		if cfg.Mailbox == "" {
			return fmt.Errorf("--mailbox is required")
		}
	}

	if cfg.CSVPath == "" {
		return fmt.Errorf("--csv is required")
	}

	if len(cfg.OnlyTypes) > 0 && len(cfg.ExcludeTypes) > 0 {
		return fmt.Errorf("--only-type and --exclude-type are mutually exclusive")
	}
	if len(cfg.IncludeBody) > 0 && len(cfg.ExcludeBody) > 0 {
		return fmt.Errorf("--include-body and --exclude-body are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".grab-receipts-exporter", "state"), nil
}
