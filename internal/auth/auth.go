// Package auth implements the client-side authentication flow of the
// DDMW client interface: token authentication with password fallback,
// optional persistence of a freshly issued token, and the companion
// unauthenticate operation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"ddmw-cli/internal/conn"
	"ddmw-cli/internal/proto"
)

// tokenMaxChars bounds a file-sourced token's usable length.
const tokenMaxChars = 32

// Token is a bearer credential: either an in-memory string or a
// reference to a file whose content is read lazily at use time.
type Token struct {
	value string
	path  string
}

// TokenString returns a token held in memory.
func TokenString(value string) Token {
	return Token{value: value}
}

// TokenFile returns a token backed by a file. The file is read when the
// token is used, and its content is truncated to the first 32 characters.
func TokenFile(path string) Token {
	return Token{path: path}
}

// load resolves the token to its string form.
func (t Token) load() (string, error) {
	if t.path == "" {
		return t.value, nil
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		return "", fmt.Errorf("read token file %s: %w", t.path, err)
	}
	return truncateChars(string(data), tokenMaxChars), nil
}

// fileMissing reports whether the token names a file that does not exist.
func (t Token) fileMissing() bool {
	if t.path == "" {
		return false
	}
	_, err := os.Stat(t.path)
	return err != nil
}

func truncateChars(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// AuthInfo is the caller's authentication policy. Account and Passphrase
// form an optional pair; an empty Account means no password material is
// available. InputToken, when set, is tried before the password pair.
// OutputTokenPath, when set, requests a fresh token from the node and
// persists it there.
type AuthInfo struct {
	Account         string
	Passphrase      string
	InputToken      *Token
	OutputTokenPath string
}

// FromAccPass returns an AuthInfo holding only an account and passphrase.
func FromAccPass(account, passphrase string) *AuthInfo {
	return &AuthInfo{Account: account, Passphrase: passphrase}
}

// Authenticate negotiates an identity for the connection.
//
// An input token is tried first; a token file that does not exist is
// treated as "no token" rather than an error. A server-side rejection of
// the token falls through to password authentication; any other failure
// aborts. With an account/passphrase pair the node is asked to
// authenticate and, when OutputTokenPath is set, to issue a new token,
// which is persisted verbatim. The issued token (if any) is returned;
// an empty string means the node issued none. With no usable material
// the result is ErrInvalidCredentials without any network exchange.
func Authenticate(ctx context.Context, c *conn.Conn, ai *AuthInfo) (string, error) {
	if ai.InputToken != nil && !ai.InputToken.fileMissing() {
		err := authToken(ctx, c, *ai.InputToken)
		if err == nil {
			return "", nil
		}
		var se *proto.ServerError
		if !errors.As(err, &se) {
			return "", err
		}
		// The node rejected the token; it may simply have expired.
		// Fall through to password authentication.
		log.Debug().Err(err).Msg("token rejected, trying password auth")
	}

	if ai.Account != "" {
		reqTkn := ai.OutputTokenPath != ""
		tkn, err := authAccPass(ctx, c, ai.Account, ai.Passphrase, reqTkn)
		if err != nil {
			return "", err
		}
		if tkn != "" && ai.OutputTokenPath != "" {
			if err := os.WriteFile(ai.OutputTokenPath, []byte(tkn), 0o600); err != nil {
				return "", fmt.Errorf("save token: %w", err)
			}
			log.Debug().Str("path", ai.OutputTokenPath).Msg("token saved")
		}
		return tkn, nil
	}

	return "", proto.ErrInvalidCredentials
}

// authToken sends a token authentication telegram and awaits the
// acknowledgement.
func authToken(ctx context.Context, c *conn.Conn, tkn Token) error {
	value, err := tkn.load()
	if err != nil {
		return err
	}
	tg, err := proto.NewTelegramTopic(proto.TopicAuth)
	if err != nil {
		return err
	}
	if err := tg.AddParam("Tkn", value); err != nil {
		return err
	}
	_, err = c.SendRecv(ctx, tg)
	return err
}

// authAccPass sends an account/passphrase authentication telegram,
// optionally requesting a fresh token, and returns the issued token if
// the node supplied one.
func authAccPass(ctx context.Context, c *conn.Conn, account, passphrase string, reqTkn bool) (string, error) {
	tg, err := proto.NewTelegramTopic(proto.TopicAuth)
	if err != nil {
		return "", err
	}
	if err := tg.AddParam("AccName", account); err != nil {
		return "", err
	}
	if err := tg.AddParam("Pass", passphrase); err != nil {
		return "", err
	}
	if reqTkn {
		if err := tg.AddParam("ReqTkn", "True"); err != nil {
			return "", err
		}
	}

	params, err := c.SendRecv(ctx, tg)
	if err != nil {
		return "", err
	}
	if !reqTkn {
		return "", nil
	}
	tkn, _ := params.Get("Tkn")
	return tkn, nil
}

// Unauthenticate returns the connection to the built-in anonymous
// account.
func Unauthenticate(ctx context.Context, c *conn.Conn) error {
	tg, err := proto.NewTelegramTopic(proto.TopicUnauth)
	if err != nil {
		return err
	}
	_, err = c.SendRecv(ctx, tg)
	return err
}
