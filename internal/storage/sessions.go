package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tonehq/tonectl/internal/crypto"
	"github.com/tonehq/tonectl/pkg/types"
)

// Ensure FileStore implements SessionStore
var _ SessionStore = (*FileStore)(nil)

// SessionsFileName is the jar file inside the config directory
const SessionsFileName = "sessions.json"

// FileStore keeps sessions in a single JSON file, optionally sealed
type FileStore struct {
	mu       sync.RWMutex
	path     string
	sealer   *crypto.Sealer
	sessions map[string]*types.Session
}

// storedSession is one profile's entry on disk
type storedSession struct {
	Profile   string    `json:"profile"`
	Sealed    bool      `json:"sealed"`
	Data      string    `json:"data"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// sessionsDatabase is the on-disk format
type sessionsDatabase struct {
	Version   int                       `json:"version"`
	Sessions  map[string]*storedSession `json:"sessions"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// NewFileStore opens the plaintext jar in configDir
func NewFileStore(configDir string) (*FileStore, error) {
	return open(configDir, nil)
}

// NewSealedFileStore opens the jar in configDir with every session sealed
// under passphrase
func NewSealedFileStore(configDir, passphrase string) (*FileStore, error) {
	if err := crypto.ValidatePassphrase(passphrase); err != nil {
		return nil, fmt.Errorf("invalid passphrase: %w", err)
	}
	return open(configDir, crypto.NewSealer(passphrase))
}

func open(configDir string, sealer *crypto.Sealer) (*FileStore, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	fs := &FileStore{
		path:     filepath.Join(configDir, SessionsFileName),
		sealer:   sealer,
		sessions: make(map[string]*types.Session),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the jar file location
func (fs *FileStore) Path() string {
	return fs.path
}

// GetSession returns a copy of the stored session of profile
func (fs *FileStore) GetSession(profile string) (*types.Session, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	s, ok := fs.sessions[profile]
	if !ok {
		return nil, fmt.Errorf("profile '%s': %w", profile, ErrSessionNotFound)
	}
	return copySession(s), nil
}

// PutSession stores session and persists the jar
func (fs *FileStore) PutSession(session *types.Session) error {
	if session == nil || session.Profile == "" {
		return fmt.Errorf("session profile cannot be empty")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	stored := copySession(session)
	now := time.Now()
	if existing, ok := fs.sessions[session.Profile]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	fs.sessions[session.Profile] = stored
	return fs.save()
}

// DeleteSession removes a profile's session
func (fs *FileStore) DeleteSession(profile string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.sessions[profile]; !ok {
		return fmt.Errorf("profile '%s': %w", profile, ErrSessionNotFound)
	}
	delete(fs.sessions, profile)
	return fs.save()
}

// ListSessions returns the stored profile names, sorted
func (fs *FileStore) ListSessions() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return sortedKeys(fs.sessions)
}

// SessionExists reports whether profile has a stored session
func (fs *FileStore) SessionExists(profile string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.sessions[profile]
	return ok
}

// Metadata summarizes every stored session
func (fs *FileStore) Metadata() map[string]types.SessionMetadata {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return metadataOf(fs.sessions)
}

// Close wipes the passphrase and cookie values held in memory
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for name, s := range fs.sessions {
		for k := range s.Cookies {
			s.Cookies[k] = types.Cookie{}
		}
		delete(fs.sessions, name)
	}
	if fs.sealer != nil {
		fs.sealer.Close()
	}
	return nil
}

func (fs *FileStore) save() error {
	db := &sessionsDatabase{
		Version:   1,
		Sessions:  make(map[string]*storedSession, len(fs.sessions)),
		UpdatedAt: time.Now(),
	}

	for name, s := range fs.sessions {
		plain, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to serialize session '%s': %w", name, err)
		}

		entry := &storedSession{
			Profile:   name,
			Data:      string(plain),
			Checksum:  checksum(plain),
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		}
		if fs.sealer != nil {
			sealed, err := fs.sealer.Seal(plain)
			if err != nil {
				return fmt.Errorf("failed to seal session '%s': %w", name, err)
			}
			entry.Data = sealed
			entry.Sealed = true
		}
		db.Sessions[name] = entry
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize sessions database: %w", err)
	}

	tempPath := fs.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write sessions to temp file: %w", err)
	}
	if err := os.Rename(tempPath, fs.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to atomically update sessions file: %w", err)
	}
	return nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path) // #nosec G304 - path built from the config directory
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read sessions file: %w", err)
	}

	var db sessionsDatabase
	if err := json.Unmarshal(data, &db); err != nil {
		return fmt.Errorf("failed to parse sessions database: %w", err)
	}

	for name, entry := range db.Sessions {
		plain := []byte(entry.Data)
		if entry.Sealed {
			if fs.sealer == nil {
				return fmt.Errorf("session '%s' is sealed: a passphrase is required", name)
			}
			plain, err = fs.sealer.Open(entry.Data)
			if err != nil {
				return fmt.Errorf("failed to unseal session '%s': %w", name, err)
			}
		}

		if checksum(plain) != entry.Checksum {
			fmt.Fprintf(os.Stderr, "Warning: session '%s' has an invalid checksum, skipping\n", name)
			continue
		}

		var s types.Session
		if err := json.Unmarshal(plain, &s); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to deserialize session '%s', skipping: %v\n", name, err)
			continue
		}
		if s.Cookies == nil {
			s.Cookies = make(map[string]types.Cookie)
		}
		fs.sessions[name] = &s
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func copySession(s *types.Session) *types.Session {
	out := *s
	out.Cookies = make(map[string]types.Cookie, len(s.Cookies))
	for k, v := range s.Cookies {
		out.Cookies[k] = v
	}
	return &out
}

func sortedKeys(m map[string]*types.Session) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func metadataOf(sessions map[string]*types.Session) map[string]types.SessionMetadata {
	out := make(map[string]types.SessionMetadata, len(sessions))
	for name, s := range sessions {
		md := types.SessionMetadata{Profile: name, Cookies: len(s.Cookies), UpdatedAt: s.UpdatedAt}
		if c, ok := s.Cookies[types.CookieAccessToken]; ok {
			md.ExpiresAt = c.Expires
		}
		out[name] = md
	}
	return out
}
