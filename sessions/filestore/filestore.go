// Package filestore keeps the operator session in a single JSON file,
// optionally sealed with XChaCha20-Poly1305.
package filestore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/customs-console/sessions"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/chacha20poly1305"
)

var _ sessions.Repo = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	path string
	aead cipher.AEAD
	log  zerolog.Logger
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New opens a store at path. A nil key stores plain JSON; otherwise key must
// be 32 bytes.
func New(path string, key []byte, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("[filestore New] path is required")
	}
	s := &Store{path: path, log: zerolog.Nop()}
	if key != nil {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("[filestore New] invalid key: %w", err)
		}
		s.aead = aead
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *Store) Set(key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *Store) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	if len(values) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("[filestore Delete] remove %s: %w", s.path, err)
		}
		return nil
	}
	return s.save(values)
}

// load reads the file. A file that can't be decrypted or decoded is removed
// and treated as empty so a damaged session never authenticates anyone.
func (s *Store) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("[filestore load] read %s: %w", s.path, err)
	}

	if s.aead != nil {
		ns := s.aead.NonceSize()
		if len(raw) < ns {
			return s.discard(errors.New("file too short to decrypt"))
		}
		if raw, err = s.aead.Open(nil, raw[:ns], raw[ns:], nil); err != nil {
			return s.discard(err)
		}
	}

	values := make(map[string]string)
	if err := json.Unmarshal(raw, &values); err != nil {
		return s.discard(err)
	}
	return values, nil
}

func (s *Store) discard(cause error) (map[string]string, error) {
	s.log.Warn().Err(cause).Str("path", s.path).Msg("session file is unreadable, removing it")
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("[filestore load] remove %s: %w", s.path, err)
	}
	return make(map[string]string), nil
}

func (s *Store) save(values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("[filestore save] encode: %w", err)
	}
	if s.aead != nil {
		nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(raw)+s.aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("[filestore save] nonce: %w", err)
		}
		raw = s.aead.Seal(nonce, nonce, raw, nil)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("[filestore save] create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("[filestore save] temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("[filestore save] write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[filestore save] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("[filestore save] rename: %w", err)
	}
	return nil
}
