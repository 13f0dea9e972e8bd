// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

// tokenctl mints, decodes and hashes Civicmap credentials for client
// integration and user seeding.
//
//	tokenctl mint   --secret S --user U --password P [--time T]
//	tokenctl decode --secret S --token T
//	tokenctl hash   --password P [--cost N]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/tomtom215/civicmap/internal/auth"
)

// errUsage is returned after the usage text has been printed.
var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errUsage
	}

	switch args[0] {
	case "mint":
		return runMint(args[1:], stdout, stderr)
	case "decode":
		return runDecode(args[1:], stdout, stderr)
	case "hash":
		return runHash(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: tokenctl <command> [flags]

Commands:
  mint     encrypt a credential bundle into a token
  decode   decrypt a token and print its payload
  hash     print a bcrypt hash for seeding users

Run "tokenctl <command> --help" for the flags of a command.
`)
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tokenctl "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parse parses fs and maps --help to a clean exit.
func parse(fs *pflag.FlagSet, args []string) (help bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected argument: %s\n", fs.Arg(0))
		return false, errUsage
	}
	return false, nil
}

func require(fs *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		if !fs.Changed(name) {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}

func runMint(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("mint", stderr)
	secret := fs.String("secret", "", "modality secret key")
	user := fs.String("user", "", "username")
	password := fs.String("password", "", "password")
	at := fs.String("time", "", "issue time as RFC 3339 or unix seconds (default now)")

	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if err := require(fs, "secret", "user", "password"); err != nil {
		return err
	}

	issued, err := parseTime(*at)
	if err != nil {
		return err
	}

	key := &auth.Key{Secret: []byte(*secret)}
	if len(key.Secret) < auth.MinSecretLength {
		fmt.Fprintf(stderr, "warning: secret is %d bytes; servers reject keys shorter than %d\n",
			len(key.Secret), auth.MinSecretLength)
	}

	token, err := auth.MintToken(auth.NewAESCodec(), key, *user, *password, issued)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

// parseTime accepts RFC 3339 or unix seconds; empty means now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--time must be RFC 3339 or unix seconds: %w", err)
	}
	return t, nil
}

// decoded is the printed form of a payload. The password is never echoed.
type decoded struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Timestamp int64  `json:"timestamp"`
	IssuedAt  string `json:"issued_at"`
	Nonce     string `json:"nonce"`
	Age       string `json:"age"`
}

func runDecode(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("decode", stderr)
	secret := fs.String("secret", "", "modality secret key")
	token := fs.String("token", "", "token text")

	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if err := require(fs, "secret", "token"); err != nil {
		return err
	}

	plain, err := auth.DecryptString(auth.NewAESCodec(), *token, &auth.Key{Secret: []byte(*secret)})
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	payload, err := auth.ParsePayload(plain)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}

	masked := ""
	if payload.Password != "" {
		masked = "********"
	}
	out, err := json.MarshalIndent(decoded{
		Username:  payload.Username,
		Password:  masked,
		Timestamp: payload.Timestamp,
		IssuedAt:  payload.IssuedAt().UTC().Format(time.RFC3339),
		Nonce:     payload.Nonce,
		Age:       time.Since(payload.IssuedAt()).Round(time.Second).String(),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(out))
	return nil
}

func runHash(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("hash", stderr)
	password := fs.String("password", "", "password to hash")
	cost := fs.Int("cost", 0, "bcrypt cost (default 10)")

	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if err := require(fs, "password"); err != nil {
		return err
	}

	hash, err := auth.HashPassword(*password, *cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hash)
	return nil
}
