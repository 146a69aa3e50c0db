package auth

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BasicManager validates HTTP Basic credentials against bcrypt hashes.
type BasicManager struct {
	users map[string][]byte
}

// NewBasicManager creates a manager from a username -> bcrypt hash map.
func NewBasicManager(users map[string]string) *BasicManager {
	m := &BasicManager{users: make(map[string][]byte, len(users))}
	for name, hash := range users {
		m.users[name] = []byte(hash)
	}
	return m
}

// LoadBasicManager reads "username=bcrypt-hash" lines from a file.
// Blank lines and lines starting with '#' are ignored.
func LoadBasicManager(path string) (*BasicManager, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open users file: %w", err)
	}
	defer f.Close()

	users, err := parseUsers(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}
	return NewBasicManager(users), nil
}

func parseUsers(r io.Reader) (map[string]string, error) {
	users := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, hash, ok := strings.Cut(line, "=")
		name, hash = strings.TrimSpace(name), strings.TrimSpace(hash)
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("line %d: expected username=hash", lineNo)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		users[name] = hash
	}
	return users, scanner.Err()
}

func (m *BasicManager) Scheme() string {
	return "Basic"
}

func (m *BasicManager) Validate(_ context.Context, authorization string) (bool, error) {
	encoded, ok := splitAuthorization(authorization, "Basic")
	if !ok {
		return false, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false, nil
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false, nil
	}

	hash, exists := m.users[username]
	if !exists {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword(hash, []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare password hash: %w", err)
	}
	return true, nil
}
