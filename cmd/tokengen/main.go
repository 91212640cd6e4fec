// Package main implements tokengen, the credential tool for the notification
// service.
//
// Usage:
//
//	go run ./cmd/tokengen token --org=acme --user=ci-bot --ttl=720h
//	go run ./cmd/tokengen token --org=acme --user=ci-bot --permissions=notify,health
//	go run ./cmd/tokengen apikey --org=acme
//	go run ./cmd/tokengen apikey --org=acme --hash
//
// token signs a credential with JWT_SECRET (read from the environment or a
// .env file). apikey prints a fresh static key and the API_KEYS entry that
// enables it; with --hash the entry stores a bcrypt hash instead of the key.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cinotify/internal/auth"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: tokengen <command> [flags]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  token    sign a credential with JWT_SECRET\n")
	fmt.Fprintf(w, "  apikey   generate a static API key\n")
}

// run returns the process exit code.
func run(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "token":
		err = runToken(args[1:], getenv, stdout, stderr)
	case "apikey":
		err = runAPIKey(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runToken(args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	org := fs.String("org", "", "Organization the credential belongs to (required)")
	user := fs.String("user", "", "User or service account ID (required)")
	perms := fs.String("permissions", "notify", "Comma-separated permissions")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "Lifetime; 0 issues a credential that never expires")
	issuer := fs.String("issuer", "cinotify", "Issuer claim")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := getenv("JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := auth.GenerateToken([]byte(secret), auth.TokenRequest{
		Organization: *org,
		UserID:       *user,
		Permissions:  splitList(*perms),
		TTL:          *ttl,
		Issuer:       *issuer,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func runAPIKey(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("apikey", flag.ContinueOnError)
	fs.SetOutput(stderr)
	org := fs.String("org", "", "Organization the key belongs to (required)")
	hash := fs.Bool("hash", false, "Store a bcrypt hash in the API_KEYS entry")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := auth.GenerateAPIKey(*org, *hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "key:      %s\n", key.Key)
	fmt.Fprintf(stdout, "API_KEYS: %s\n", key.EnvEntry)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
