package commands

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"jubo/internal/auth"
	"jubo/internal/config"
)

// HashPassword handles the hash-password subcommand: prompts for a
// username and password, hashes the password with argon2id and writes the
// basic_auth block into the config file (or prints it with -print).
func HashPassword(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	configPath := fs.String("config", "/etc/jubo/config.yaml", "Path to config file to update")
	printOnly := fs.Bool("print", false, "Print the basic_auth YAML block instead of updating the config file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: jubo hash-password [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Enables Web UI basic auth with an argon2id password hash.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	fmt.Print("Enter username: ")
	var username string
	if _, err := fmt.Scanln(&username); err != nil || username == "" {
		fmt.Fprintln(os.Stderr, "username cannot be empty")
		os.Exit(1)
	}

	password := readPassword("Enter password:   ")
	confirm := readPassword("Confirm password: ")

	if password == "" {
		fmt.Fprintln(os.Stderr, "password cannot be empty")
		os.Exit(1)
	}
	if password != confirm {
		fmt.Fprintln(os.Stderr, "passwords do not match")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	if *printOnly {
		fmt.Printf("\nbasic_auth:\n  username: %s\n  password_hash: %q\n", username, hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg.BasicAuth = &config.BasicAuthConfig{Username: username, PasswordHash: hash}
	if err := cfg.Save(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ basic auth enabled for %q in %s\n", username, *configPath)
}

// readPassword reads a line without echoing it. Falls back to plain input
// when stdin is not a terminal (e.g. piped).
func readPassword(prompt string) string {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		pw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return ""
		}
		return string(pw)
	}
	var pw string
	_, _ = fmt.Scanln(&pw)
	return pw
}
