// Package config loads the optional TOML profile used by the CLI to
// carry endpoint and credential defaults between invocations.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Profile holds per-node connection defaults. Flags override any value
// set here.
type Profile struct {
	Addr           string `toml:"addr"`
	Socket         string `toml:"socket"`
	Account        string `toml:"account"`
	PassphraseFile string `toml:"passphrase_file"`
	TokenFile      string `toml:"token_file"`
	SaveToken      string `toml:"save_token"`
}

// Load reads and validates a profile file.
func Load(path string) (Profile, error) {
	var p Profile
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(p); err != nil {
		return Profile{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return p, nil
}

// Validate checks a profile for internally inconsistent settings.
func Validate(p Profile) error {
	if p.Addr != "" && p.Socket != "" {
		return fmt.Errorf("addr and socket are mutually exclusive")
	}
	if p.PassphraseFile != "" && p.Account == "" {
		return fmt.Errorf("passphrase_file requires account")
	}
	return nil
}

// ReadPassphraseFile returns the first line of the file, trimmed.
func ReadPassphraseFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reading passphrase file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading passphrase file: %w", err)
		}
		return "", nil
	}
	return strings.TrimSpace(scanner.Text()), nil
}
