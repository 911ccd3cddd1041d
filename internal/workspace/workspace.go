// Package workspace allocates uniquely named temporary files under a managed
// root directory and removes them, along with any directories left empty,
// when the owning scope releases the workspace.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/id/uuid"
)

// ErrNotLocal is returned when a logical name would escape the workspace root.
var ErrNotLocal = errors.New("workspace: name is not a local path")

// TokenSource produces the random segment inserted into allocated names.
type TokenSource interface {
	NewToken() (string, error)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for best-effort cleanup diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTokenSource overrides the random token generator.
func WithTokenSource(src TokenSource) Option {
	return func(m *Manager) {
		if src != nil {
			m.tokens = src
		}
	}
}

// Manager tracks temporary files for a single scope. Create may be called
// from multiple goroutines; Release must be deferred by the owner.
type Manager struct {
	root   string
	tokens TokenSource
	logger *zap.Logger

	mu    sync.Mutex
	files []string
}

// New returns a Manager rooted at dir, resolved to an absolute path. The root
// itself is created lazily by Create.
func New(dir string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", dir, err)
	}
	m := &Manager{
		root:   root,
		tokens: uuid.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the absolute workspace root.
func (m *Manager) Root() string {
	return m.root
}

// Create allocates a new path for the slash-separated logical name by
// inserting a random token before its extension, so "dir/app.so" becomes
// "dir/app.<token>.so". Missing parent directories are created and the path
// is tracked for Release.
func (m *Manager) Create(name string) (string, error) {
	name = path.Clean(filepath.ToSlash(name))
	if name == "." {
		return "", fmt.Errorf("%w: empty name", ErrNotLocal)
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("%w: %q", ErrNotLocal, name)
	}
	token, err := m.tokens.NewToken()
	if err != nil {
		return "", fmt.Errorf("workspace token: %w", err)
	}
	ext := path.Ext(name)
	rel := strings.TrimSuffix(name, ext) + "." + token + ext

	full := filepath.Join(m.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create workspace dir for %s: %w", rel, err)
	}

	m.mu.Lock()
	m.files = append(m.files, rel)
	m.mu.Unlock()
	return full, nil
}

// Files returns the tracked paths relative to the root.
func (m *Manager) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.files))
	copy(out, m.files)
	return out
}

// Release deletes every tracked file and prunes the directories holding it,
// child to parent, stopping at the first directory that cannot be removed or
// at the root, which is never removed. Failures are swallowed. Calling Release
// again is a no-op.
func (m *Manager) Release() {
	m.mu.Lock()
	files := m.files
	m.files = nil
	m.mu.Unlock()

	for _, rel := range files {
		full := filepath.Join(m.root, filepath.FromSlash(rel))
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Debug("remove temp file failed", zap.String("path", full), zap.Error(err))
		}
		m.pruneDirs(rel)
	}
}

func (m *Manager) pruneDirs(rel string) {
	segments := strings.Split(rel, "/")
	segments = segments[:len(segments)-1]
	for len(segments) > 0 {
		dir := filepath.Join(append([]string{m.root}, segments...)...)
		if err := os.Remove(dir); err != nil {
			m.logger.Debug("stop pruning temp dirs", zap.String("dir", dir), zap.Error(err))
			return
		}
		segments = segments[:len(segments)-1]
	}
}
