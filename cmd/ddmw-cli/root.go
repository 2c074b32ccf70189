package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ddmw-cli/internal/auth"
	"ddmw-cli/internal/config"
	"ddmw-cli/internal/conn"
	"ddmw-cli/internal/logging"
	"ddmw-cli/internal/proto"
)

// exit codes
const (
	exitOK         = 0
	exitConnection = 1
	exitServer     = 2
	exitAuth       = 3
	exitINT        = 130
)

type rootConfig struct {
	addr           string
	socket         string
	account        string
	passphrase     string
	passphraseFile string
	token          string
	tokenFile      string
	saveToken      string
	configPath     string
	timeout        time.Duration
	verbose        int
}

func newRootCmd() *cobra.Command {
	cfg := &rootConfig{}
	return buildRootCmd(cfg)
}

func buildRootCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ddmw-cli",
		Short:         "DDMW node control CLI",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Init("ddmw-cli", cfg.verbose)
			cfg.resolveEnvVars(cmd.Flags().Changed)
			if err := cfg.applyProfile(cmd.Flags().Changed); err != nil {
				return err
			}
			if err := cfg.resolvePassphrase(); err != nil {
				return err
			}
			if cfg.socket != "" {
				if cmd.Flags().Changed("addr") {
					return fmt.Errorf("--addr and --socket are mutually exclusive")
				}
				cfg.addr = ""
			}
			return nil
		},
	}
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.AddCommand(newSendCmd(cfg))
	cmd.AddCommand(newAccountCmd(cfg))
	cmd.AddCommand(newUnauthCmd(cfg))

	f := cmd.PersistentFlags()
	f.StringVarP(&cfg.addr, "addr", "a", "localhost:4001", "node address (host:port)")
	f.StringVar(&cfg.socket, "socket", "", "node unix socket path (overrides --addr)")
	f.StringVarP(&cfg.account, "account", "A", "", "account name (or DDMW_ACCOUNT env)")
	f.StringVarP(&cfg.passphrase, "passphrase", "p", "", "account passphrase (or DDMW_PASSPHRASE env)")
	f.StringVar(&cfg.passphraseFile, "passphrase-file", "", "read passphrase from file")
	f.StringVar(&cfg.token, "token", "", "authentication token (or DDMW_TOKEN env)")
	f.StringVar(&cfg.tokenFile, "token-file", "", "read authentication token from file")
	f.StringVar(&cfg.saveToken, "save-token", "", "request a fresh token and write it to file")
	f.StringVarP(&cfg.configPath, "config", "c", "", "TOML profile file (or DDMW_CONFIG env)")
	f.DurationVarP(&cfg.timeout, "timeout", "t", 30*time.Second, "per-operation timeout")
	f.CountVarP(&cfg.verbose, "verbose", "v", "increase log verbosity (repeatable)")

	return cmd
}

// exitCode maps an error to the appropriate process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, proto.ErrInvalidCredentials) {
		return exitAuth
	}
	var se *proto.ServerError
	if errors.As(err, &se) {
		return exitServer
	}
	return exitConnection
}

// resolveEnvVars applies env var values for flags not explicitly set via CLI.
func (c *rootConfig) resolveEnvVars(changed func(string) bool) {
	applyEnvStr(&c.addr, changed("addr"), "DDMW_ADDR")
	applyEnvStr(&c.socket, changed("socket"), "DDMW_SOCKET")
	applyEnvStr(&c.account, changed("account"), "DDMW_ACCOUNT")
	applyEnvStr(&c.passphrase, changed("passphrase"), "DDMW_PASSPHRASE")
	applyEnvStr(&c.token, changed("token"), "DDMW_TOKEN")
	applyEnvStr(&c.configPath, changed("config"), "DDMW_CONFIG")
}

// applyEnvStr sets *dst to the env var value when the flag was not explicitly set.
func applyEnvStr(dst *string, flagChanged bool, key string) {
	if flagChanged {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyProfile fills unset fields from the TOML profile, if one was
// requested. Flags and env vars always win over the profile.
func (c *rootConfig) applyProfile(changed func(string) bool) error {
	if c.configPath == "" {
		return nil
	}
	p, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.socket == "" && p.Socket != "" {
		c.socket = p.Socket
	}
	if c.socket == "" && p.Addr != "" && !changed("addr") && os.Getenv("DDMW_ADDR") == "" {
		c.addr = p.Addr
	}
	if c.account == "" {
		c.account = p.Account
	}
	if c.passphraseFile == "" {
		c.passphraseFile = p.PassphraseFile
	}
	if c.tokenFile == "" {
		c.tokenFile = p.TokenFile
	}
	if c.saveToken == "" {
		c.saveToken = p.SaveToken
	}
	return nil
}

// resolvePassphrase loads the passphrase from --passphrase-file if set.
func (c *rootConfig) resolvePassphrase() error {
	if c.passphraseFile == "" || c.passphrase != "" {
		return nil
	}
	pass, err := config.ReadPassphraseFile(c.passphraseFile)
	if err != nil {
		return err
	}
	c.passphrase = pass
	return nil
}

// endpoint returns the transport endpoint the flags select.
func (c *rootConfig) endpoint() conn.Endpoint {
	if c.socket != "" {
		return conn.Endpoint{SocketPath: c.socket}
	}
	return conn.Endpoint{Addr: c.addr}
}

// authInfo assembles the authentication material the flags carry, or
// nil when no material is configured. With an account but no passphrase
// and a terminal on stdin, the passphrase is prompted for.
func (c *rootConfig) authInfo() (*auth.AuthInfo, error) {
	ai := &auth.AuthInfo{
		Account:         c.account,
		Passphrase:      c.passphrase,
		OutputTokenPath: c.saveToken,
	}
	switch {
	case c.token != "":
		tkn := auth.TokenString(c.token)
		ai.InputToken = &tkn
	case c.tokenFile != "":
		tkn := auth.TokenFile(c.tokenFile)
		ai.InputToken = &tkn
	}
	if ai.Account != "" && ai.Passphrase == "" && ai.InputToken == nil {
		pass, err := promptPassphrase(os.Stderr, os.Stdin)
		if err != nil {
			return nil, err
		}
		ai.Passphrase = pass
	}
	if ai.Account == "" && ai.InputToken == nil && ai.OutputTokenPath == "" {
		return nil, nil
	}
	return ai, nil
}

func (c *rootConfig) opTimeout() time.Duration {
	if c.timeout <= 0 {
		return 30 * time.Second
	}
	return c.timeout
}

func isTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec
}

// promptPassphrase reads a passphrase without echo when stdin is a
// terminal. Falls back to plain line reading for non-TTY input.
func promptPassphrase(w io.Writer, r io.Reader) (string, error) {
	_, _ = fmt.Fprint(w, "Passphrase: ")
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec
		pass, err := term.ReadPassword(int(f.Fd())) //nolint:gosec
		_, _ = fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(pass), nil
	}
	// non-TTY: read one line
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		if text := scanner.Text(); text != "" {
			return text, nil
		}
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return "", fmt.Errorf("passphrase cannot be empty")
}
