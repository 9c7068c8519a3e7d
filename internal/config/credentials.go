package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Error reports a missing or malformed configuration value. Key is the
// environment variable (or config key) at fault.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

// Credentials is the resolved GitHub App identity.
type Credentials struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPEM  []byte
}

const pemPrefix = "-----BEGIN"

// Credentials resolves the App identity material. An inline key takes
// precedence over a key path.
func (c *Config) Credentials() (Credentials, error) {
	appID, err := parseID("GITHUB_APP_ID", c.App.ID)
	if err != nil {
		return Credentials{}, err
	}
	installationID, err := parseID("GITHUB_APP_INSTALLATION_ID", c.App.InstallationID)
	if err != nil {
		return Credentials{}, err
	}
	key, err := c.privateKey()
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AppID: appID, InstallationID: installationID, PrivateKeyPEM: key}, nil
}

func parseID(key, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &Error{Key: key, Reason: "environment variable is required"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &Error{Key: key, Reason: fmt.Sprintf("must be a positive integer, got %q", raw)}
	}
	return id, nil
}

func (c *Config) privateKey() ([]byte, error) {
	if inline := strings.TrimSpace(c.App.PrivateKey); inline != "" {
		return decodeInlineKey(inline)
	}
	if path := strings.TrimSpace(c.App.PrivateKeyPath); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Key: "GITHUB_APP_PRIVATE_KEY_PATH", Reason: fmt.Sprintf("read private key: %v", err)}
		}
		return raw, nil
	}
	return nil, &Error{Key: "GITHUB_APP_PRIVATE_KEY", Reason: "either GITHUB_APP_PRIVATE_KEY or GITHUB_APP_PRIVATE_KEY_PATH must be set"}
}

// decodeInlineKey accepts PEM text (with literal \n escapes, as stored by
// most secret managers) or base64 encoded PEM.
func decodeInlineKey(v string) ([]byte, error) {
	v = strings.ReplaceAll(v, `\n`, "\n")
	if strings.HasPrefix(v, pemPrefix) {
		return []byte(v), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(v), ""))
	if err != nil {
		return nil, &Error{Key: "GITHUB_APP_PRIVATE_KEY", Reason: "value is neither PEM nor base64 encoded PEM"}
	}
	if !strings.HasPrefix(strings.TrimSpace(string(decoded)), pemPrefix) {
		return nil, &Error{Key: "GITHUB_APP_PRIVATE_KEY", Reason: "decoded value is not PEM"}
	}
	return decoded, nil
}
