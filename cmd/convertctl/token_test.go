package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Token Validation Tests
// =============================================================================

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		confirm string
		wantErr error
	}{
		{
			name:    "valid token",
			token:   "a-sufficiently-long-token",
			confirm: "a-sufficiently-long-token",
		},
		{
			name:    "minimum length token",
			token:   "1234567890abcdef",
			confirm: "1234567890abcdef",
		},
		{
			name:    "too short token",
			token:   "1234567890abcde",
			confirm: "1234567890abcde",
			wantErr: errTokenShort,
		},
		{
			name:    "empty token",
			wantErr: errTokenShort,
		},
		{
			name:    "mismatched tokens",
			token:   "a-sufficiently-long-token",
			confirm: "a-sufficiently-long-tokem",
			wantErr: errTokenMismatch,
		},
		{
			name:    "case sensitive",
			token:   "A-sufficiently-long-token",
			confirm: "a-sufficiently-long-token",
			wantErr: errTokenMismatch,
		},
		{
			name:    "beyond bcrypt limit",
			token:   strings.Repeat("x", 73),
			confirm: strings.Repeat("x", 73),
			wantErr: errTokenLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateToken([]byte(tt.token), []byte(tt.confirm))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateToken() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHashToken(t *testing.T) {
	token := []byte("a-sufficiently-long-token")

	hash, err := hashToken(token, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashToken() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), token); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
	if cost, err := bcrypt.Cost([]byte(hash)); err != nil || cost != bcrypt.MinCost {
		t.Errorf("Cost() = %d, %v; want %d", cost, err, bcrypt.MinCost)
	}
}

func TestHashTokenInvalidCost(t *testing.T) {
	if _, err := hashToken([]byte("a-sufficiently-long-token"), bcrypt.MaxCost+1); err == nil {
		t.Error("expected error for cost above bcrypt.MaxCost")
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken() error = %v", err)
	}
	b, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken() error = %v", err)
	}

	if len(a) != generatedTokenBytes*2 {
		t.Errorf("len = %d, want %d", len(a), generatedTokenBytes*2)
	}
	if a == b {
		t.Error("two generated tokens are equal")
	}
	if err := validateToken([]byte(a), []byte(a)); err != nil {
		t.Errorf("generated token fails validation: %v", err)
	}
}

// =============================================================================
// hash-token Command Tests
// =============================================================================

// stdinFile returns a regular file holding content, which is never a terminal.
func stdinFile(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestReadTokenFromPipe(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"newline terminated", "a-sufficiently-long-token\n", "a-sufficiently-long-token", false},
		{"crlf terminated", "a-sufficiently-long-token\r\n", "a-sufficiently-long-token", false},
		{"no trailing newline", "a-sufficiently-long-token", "a-sufficiently-long-token", false},
		{"only first line", "a-sufficiently-long-token\nsecond line\n", "a-sufficiently-long-token", false},
		{"too short", "short\n", "", true},
		{"empty input", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt bytes.Buffer
			got, err := readToken(stdinFile(t, tt.input), &prompt)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("readToken() = %q, want %q", got, tt.want)
			}
			if prompt.Len() != 0 {
				t.Errorf("unexpected prompt for piped input: %q", prompt.String())
			}
		})
	}
}

func TestRunHashTokenFromPipe(t *testing.T) {
	var stdout, stderr bytes.Buffer
	stdin := stdinFile(t, "a-sufficiently-long-token\n")

	code := run(context.Background(), []string{"hash-token", "-cost", "4"}, stdin, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	hash := strings.TrimSpace(stdout.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("a-sufficiently-long-token")); err != nil {
		t.Errorf("printed hash does not verify: %v", err)
	}
	if !strings.Contains(stderr.String(), "API_TOKEN_HASH='"+hash+"'") {
		t.Errorf("stderr missing quoted .env hint: %s", stderr.String())
	}
}

func TestRunHashTokenGenerate(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"hash-token", "-generate", "-cost", "4"}, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	var token string
	for _, line := range strings.Split(stderr.String(), "\n") {
		if rest, ok := strings.CutPrefix(line, "Token: "); ok {
			token = rest
		}
	}
	if token == "" {
		t.Fatalf("generated token not printed: %s", stderr.String())
	}

	hash := strings.TrimSpace(stdout.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		t.Errorf("hash does not match generated token: %v", err)
	}
}

func TestRunHashTokenRejectsShortToken(t *testing.T) {
	var stdout, stderr bytes.Buffer
	stdin := stdinFile(t, "short\n")

	if code := run(context.Background(), []string{"hash-token"}, stdin, &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}
