package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Docker secret paths
	DockerSecretsPath    = "/run/secrets"
	PassphraseSecretName = "tonectl_passphrase" // #nosec G101 - not a credential, just a filename
	BaseURLSecretName    = "tonectl_api_url"
)

// secretsPath is swapped in tests
var secretsPath = DockerSecretsPath

// LoadPassphraseFromSecret loads the session store passphrase from a Docker secret
func LoadPassphraseFromSecret() (string, error) {
	return readSecret(PassphraseSecretName)
}

// LoadBaseURLFromSecret loads a backend URL override from a Docker secret
func LoadBaseURLFromSecret() (string, error) {
	return readSecret(BaseURLSecretName)
}

func readSecret(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(secretsPath, name)) // #nosec G304 - Docker secret path
	if err != nil {
		return "", fmt.Errorf("secret %s not found", name)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("secret %s is empty", name)
	}
	return value, nil
}

// ApplyDockerSecrets overrides cfg with values found in mounted secrets
func (c *Config) ApplyDockerSecrets() {
	if url, err := LoadBaseURLFromSecret(); err == nil {
		c.API.BaseURL = url
	}
}

// IsRunningInDocker checks if the application is running inside a Docker container
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if cgroup, err := os.ReadFile("/proc/1/cgroup"); err == nil { // #nosec G304 - well-known proc path
		if strings.Contains(string(cgroup), "docker") {
			return true
		}
	}

	if _, err := os.Stat(secretsPath); err == nil {
		return true
	}

	return false
}
