package main

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const (
	minTokenLength = 16
	// bcrypt ignores everything past 72 bytes.
	maxTokenLength = 72
	// generatedTokenBytes of randomness, hex encoded.
	generatedTokenBytes = 24
)

var (
	errTokenMismatch = errors.New("tokens do not match")
	errTokenShort    = fmt.Errorf("token must be at least %d characters", minTokenLength)
	errTokenLong     = fmt.Errorf("token must be at most %d bytes", maxTokenLength)
)

func runHashToken(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	generate := fs.Bool("generate", false, "generate a random token instead of reading one")
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var token []byte
	if *generate {
		t, err := generateToken()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		token = []byte(t)
		fmt.Fprintf(stderr, "Token: %s\n", t)
		fmt.Fprintln(stderr, "Store it now; only the hash is kept by the server.")
	} else {
		t, err := readToken(stdin, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		token = t
	}

	hash, err := hashToken(token, *cost)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, hash)
	fmt.Fprintln(stderr, "Set API_TOKEN_HASH to the hash above. In a .env file, single-quote it")
	fmt.Fprintln(stderr, "so the $ signs are not expanded:")
	fmt.Fprintf(stderr, "  API_TOKEN_HASH='%s'\n", hash)
	return 0
}

// readToken prompts twice on a terminal. Otherwise the first line of in is
// the token, so it can be piped from a secret store.
func readToken(in *os.File, prompt io.Writer) ([]byte, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read token: %w", err)
		}
		token := bytes.TrimRight(line, "\r\n")
		return token, validateToken(token, token)
	}

	fmt.Fprint(prompt, "API Token: ")
	token, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	fmt.Fprint(prompt, "Confirm Token: ")
	confirm, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	return token, validateToken(token, confirm)
}

func validateToken(token, confirm []byte) error {
	if !bytes.Equal(token, confirm) {
		return errTokenMismatch
	}
	if len(token) < minTokenLength {
		return errTokenShort
	}
	if len(token) > maxTokenLength {
		return errTokenLong
	}
	return nil
}

func hashToken(token []byte, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(token, cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

func generateToken() (string, error) {
	b := make([]byte, generatedTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
