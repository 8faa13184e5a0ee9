package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "recruitmate"

	// NoKeyringEnv forces the plaintext file backend when set.
	NoKeyringEnv = "RECRUITMATE_NO_KEYRING"

	credentialsFile = "credentials.json"
)

var errNotFound = errors.New("credentials not found")

// secrets is the subset of the keyring API the vault uses.
type secrets interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
	Delete(service, user string) error
}

type systemKeyring struct{}

func (systemKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

func (systemKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

func (systemKeyring) Delete(service, user string) error {
	return keyring.Delete(service, user)
}

// vault persists one Record per backend origin, preferring the system keychain.
type vault struct {
	useKeyring  bool
	fallbackDir string
	kr          secrets
}

func newVault(fallbackDir string) *vault {
	// Skip keyring for tests or when explicitly disabled
	if os.Getenv(NoKeyringEnv) != "" {
		return &vault{useKeyring: false, fallbackDir: fallbackDir, kr: systemKeyring{}}
	}

	// Test if keyring is available
	testKey := serviceName + "::test"
	err := keyring.Set(serviceName, testKey, "test")
	if err == nil {
		_ = keyring.Delete(serviceName, testKey) // Best-effort cleanup
		return &vault{useKeyring: true, fallbackDir: fallbackDir, kr: systemKeyring{}}
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, credentials stored in plaintext at %s\n",
		filepath.Join(fallbackDir, credentialsFile))
	return &vault{useKeyring: false, fallbackDir: fallbackDir, kr: systemKeyring{}}
}

// key returns the keyring key for an origin.
func key(origin string) string {
	return fmt.Sprintf("%s::%s", serviceName, origin)
}

func (v *vault) load(origin string) (*Record, error) {
	if v.useKeyring {
		return v.loadFromKeyring(origin)
	}
	return v.loadFromFile(origin)
}

func (v *vault) save(origin string, rec *Record) error {
	if v.useKeyring {
		return v.saveToKeyring(origin, rec)
	}
	return v.saveToFile(origin, rec)
}

func (v *vault) delete(origin string) error {
	if v.useKeyring {
		err := v.kr.Delete(serviceName, key(origin))
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return v.deleteFromFile(origin)
}

// Keyring methods

func (v *vault) loadFromKeyring(origin string) (*Record, error) {
	data, err := v.kr.Get(serviceName, key(origin))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring read: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	return &rec, nil
}

func (v *vault) saveToKeyring(origin string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return v.kr.Set(serviceName, key(origin), string(data))
}

// File fallback methods

func (v *vault) credentialsPath() string {
	return filepath.Join(v.fallbackDir, credentialsFile)
}

func (v *vault) loadAllFromFile() (map[string]*Record, error) {
	data, err := os.ReadFile(v.credentialsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Record), nil
		}
		return nil, err
	}

	var all map[string]*Record
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("invalid credentials file: %w", err)
	}
	if all == nil {
		all = make(map[string]*Record)
	}
	return all, nil
}

func (v *vault) saveAllToFile(all map[string]*Record) error {
	if err := os.MkdirAll(v.fallbackDir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(v.fallbackDir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	// Windows: rename fails when the destination exists.
	destPath := v.credentialsPath()
	if err := os.Rename(tmpPath, destPath); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(destPath)
			return os.Rename(tmpPath, destPath)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (v *vault) loadFromFile(origin string) (*Record, error) {
	all, err := v.loadAllFromFile()
	if err != nil {
		return nil, err
	}

	rec, ok := all[origin]
	if !ok || rec == nil {
		return nil, errNotFound
	}
	return rec, nil
}

func (v *vault) saveToFile(origin string, rec *Record) error {
	all, err := v.loadAllFromFile()
	if err != nil {
		return err
	}

	all[origin] = rec
	return v.saveAllToFile(all)
}

func (v *vault) deleteFromFile(origin string) error {
	all, err := v.loadAllFromFile()
	if err != nil {
		return err
	}
	if _, ok := all[origin]; !ok {
		return nil
	}

	delete(all, origin)
	return v.saveAllToFile(all)
}

// migrateToKeyring moves file-stored records into the keyring.
func (v *vault) migrateToKeyring() error {
	if !v.useKeyring {
		return nil
	}

	all, err := v.loadAllFromFile()
	if err != nil {
		return nil //nolint:nilerr // No readable file to migrate is not an error
	}
	if len(all) == 0 {
		return nil
	}

	for origin, rec := range all {
		if err := v.saveToKeyring(origin, rec); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", origin, err)
		}
	}

	_ = os.Remove(v.credentialsPath()) // Best-effort cleanup
	return nil
}
