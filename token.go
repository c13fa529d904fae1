package o365

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

const defaultTokenFile = ".o365_token"

// DefaultTokenPath returns the default token location, ~/.o365_token.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, defaultTokenFile), nil
}

// SaveToken writes the token to path as indented JSON. An empty path means
// the default token location.
//
// There is no locking; processes sharing a token path are not coordinated.
func SaveToken(tok *oauth2.Token, path string) error {
	path, err := tokenPath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(tok, "", " ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// LoadToken reads a previously saved token. It returns nil without an error
// when no token file exists.
func LoadToken(path string) (*oauth2.Token, error) {
	path, err := tokenPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &tok, nil
}

// DeleteToken removes the token file. A missing file is not an error.
func DeleteToken(path string) error {
	path, err := tokenPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete token file: %w", err)
	}
	return nil
}

func tokenPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultTokenPath()
}
