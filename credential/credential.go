// Package credential reads the endpoint URL and bearer token from the
// license file, a single "<url>;<token>" line.
package credential

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrUnreadable matches every load failure.
	ErrUnreadable = errors.New("credentials unreadable")

	// ErrMissing means the license file could not be opened or read.
	ErrMissing = fmt.Errorf("%w: license file missing", ErrUnreadable)

	// ErrMalformed means the file was read but lacks a URL or token.
	ErrMalformed = fmt.Errorf("%w: license file malformed", ErrUnreadable)
)

// Credentials authorize one card cycle.
type Credentials struct {
	EndpointURL string
	BearerToken string
}

// Source supplies credentials for the current cycle.
type Source interface {
	Load() (Credentials, error)
}

// FileSource reads the license file on every Load, so a rotated token is
// picked up on the next card.
type FileSource struct {
	Path string
}

// Load implements Source.
func (f FileSource) Load() (Credentials, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrMissing, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Credentials{}, fmt.Errorf("%w: %v", ErrMissing, err)
		}
		return Credentials{}, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	return Parse(scanner.Text())
}

// Parse splits a "<url>;<token>" record. Fields past the second are ignored.
func Parse(line string) (Credentials, error) {
	parts := strings.Split(line, ";")
	if len(parts) < 2 {
		return Credentials{}, fmt.Errorf("%w: want 2 fields, got %d", ErrMalformed, len(parts))
	}

	c := Credentials{
		EndpointURL: strings.TrimSpace(parts[0]),
		BearerToken: strings.TrimSpace(parts[1]),
	}
	if c.EndpointURL == "" {
		return Credentials{}, fmt.Errorf("%w: empty url", ErrMalformed)
	}
	if c.BearerToken == "" {
		return Credentials{}, fmt.Errorf("%w: empty token", ErrMalformed)
	}
	return c, nil
}
