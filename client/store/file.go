package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	fileLockTimeout = 5 * time.Second
	fileLockRetry   = 25 * time.Millisecond
)

// File guarda todas as chaves num único documento JSON (permissão 0600).
// Escritas vão para um arquivo temporário e depois rename, então um leitor
// nunca vê o documento pela metade. O lock fica em <path>.lock.
type File struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("store: empty file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return &File{
		path: path,
		lock: flock.New(path+".lock", flock.SetPermissions(0o600)),
	}, nil
}

// DefaultFilePath é ~/.config/auth-gateway/session.json (ou o equivalente do SO).
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("store: user config dir: %w", err)
	}
	return filepath.Join(dir, "auth-gateway", "session.json"), nil
}

func (f *File) Path() string { return f.path }

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := f.withLock(ctx, false, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		v, ok = data[key]
		return nil
	})
	return v, ok, err
}

func (f *File) Set(ctx context.Context, key, value string) error {
	return f.withLock(ctx, true, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		data[key] = value
		return f.write(data)
	})
}

func (f *File) Delete(ctx context.Context, key string) error {
	return f.withLock(ctx, true, func() error {
		data, err := f.read()
		if err != nil {
			return err
		}
		if _, ok := data[key]; !ok {
			return nil
		}
		delete(data, key)
		return f.write(data)
	})
}

func (f *File) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, fileLockTimeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = f.lock.TryLockContext(lockCtx, fileLockRetry)
	} else {
		locked, err = f.lock.TryRLockContext(lockCtx, fileLockRetry)
	}
	if err != nil {
		return fmt.Errorf("store: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("store: acquire lock: timeout after %v", fileLockTimeout)
	}
	defer func() { _ = f.lock.Unlock() }()

	return fn()
}

func (f *File) read() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", f.path, err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: chmod: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}
