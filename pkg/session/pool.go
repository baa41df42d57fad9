// Package session hands out isolated Document Handles. Each session gets its
// own storage namespace so scenarios never see each other's todos.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/document"
	"dev/bravebird/pagecheck/pkg/document/memdoc"
	"dev/bravebird/pagecheck/pkg/document/rodpage"
	"dev/bravebird/pagecheck/pkg/pages"
	"dev/bravebird/pagecheck/pkg/snapshot"
)

// Backend selects what a session's Document Handle drives
type Backend string

const (
	BackendRod    Backend = "rod"    // Real Chrome via the DevTools protocol
	BackendMemory Backend = "memory" // In-memory TodoMVC document
)

// ParseBackend validates a backend name
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendRod, BackendMemory:
		return Backend(s), nil
	case "":
		return BackendRod, nil
	}
	return "", fmt.Errorf("unknown backend %q (want rod or memory)", s)
}

// ErrNotFound is returned when a session id is unknown
var ErrNotFound = errors.New("session not found")

// Config configures a Pool
type Config struct {
	Backend Backend

	// Rod backend
	Headless  bool
	Bin       string // CHROME_BIN
	RemoteURL string // connect to an existing browser instead of launching

	// Memory backend
	TodoURL    string
	StorageKey string
	RenderLag  time.Duration
	PersistLag time.Duration
	TornReads  int
}

// Session is one isolated page
type Session struct {
	ID        string
	Backend   Backend
	Handle    document.Handle
	CreatedAt time.Time

	close func() error
}

// Pool manages sessions
type Pool struct {
	cfg    Config
	logger *zap.Logger

	sessions map[string]*Session
	mu       sync.RWMutex

	browserMu sync.Mutex
	browser   *rod.Browser
}

// NewPool creates a pool. The browser is launched on the first rod session.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendRod
	}
	if cfg.TodoURL == "" {
		cfg.TodoURL = pages.DefaultTodoURL
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = snapshot.DefaultKey
	}
	return &Pool{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open creates a new session
func (p *Pool) Open(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	logger := p.logger.With(zap.String("session", id), zap.String("backend", string(p.cfg.Backend)))

	var (
		s   *Session
		err error
	)
	switch p.cfg.Backend {
	case BackendMemory:
		s = p.openMemory(logger)
	case BackendRod:
		s, err = p.openRod(ctx, logger)
	default:
		err = fmt.Errorf("unknown backend %q", p.cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	s.ID = id
	s.Backend = p.cfg.Backend
	s.CreatedAt = time.Now()

	p.mu.Lock()
	p.sessions[id] = s
	p.mu.Unlock()

	logger.Info("session opened")
	return s, nil
}

func (p *Pool) openMemory(logger *zap.Logger) *Session {
	doc := memdoc.New(memdoc.WithLogger(logger))
	doc.Register(p.cfg.TodoURL, memdoc.NewTodoApp(
		memdoc.WithRenderLag(p.cfg.RenderLag),
		memdoc.WithPersistLag(p.cfg.PersistLag),
		memdoc.WithTornReads(p.cfg.TornReads),
		memdoc.WithStorageKey(p.cfg.StorageKey),
	))
	return &Session{Handle: doc, close: func() error { return nil }}
}

func (p *Pool) openRod(ctx context.Context, logger *zap.Logger) (*Session, error) {
	browser, err := p.ensureBrowser()
	if err != nil {
		return nil, err
	}

	// incognito gives every session its own local storage
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		incognito.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &Session{
		Handle: rodpage.New(page.Context(context.Background()), logger),
		close:  incognito.Close,
	}, nil
}

func (p *Pool) ensureBrowser() (*rod.Browser, error) {
	p.browserMu.Lock()
	defer p.browserMu.Unlock()
	if p.browser != nil {
		return p.browser, nil
	}

	controlURL := p.cfg.RemoteURL
	if controlURL == "" {
		l := launcher.New()
		if p.cfg.Bin != "" {
			l = l.Bin(p.cfg.Bin)
		}
		l = l.Headless(p.cfg.Headless)

		// Chrome flags for container compatibility
		l = l.Set("no-sandbox")
		l = l.Set("disable-gpu")
		l = l.Set("disable-dev-shm-usage")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	p.browser = browser
	p.logger.Info("browser connected", zap.Bool("headless", p.cfg.Headless), zap.Bool("remote", p.cfg.RemoteURL != ""))
	return browser, nil
}

// Get returns a live session
func (p *Pool) Get(id string) (*Session, error) {
	p.mu.RLock()
	s, ok := p.sessions[id]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// IDs lists open session ids, sorted
func (p *Pool) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close ends one session
func (p *Pool) Close(id string) error {
	p.mu.Lock()
	s, ok := p.sessions[id]
	delete(p.sessions, id)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.close(); err != nil {
		return fmt.Errorf("failed to close session %s: %w", id, err)
	}
	p.logger.Info("session closed", zap.String("session", id))
	return nil
}

// CloseAll ends every session and shuts the browser down
func (p *Pool) CloseAll() error {
	var errs []error
	for _, id := range p.IDs() {
		if err := p.Close(id); err != nil {
			errs = append(errs, err)
		}
	}

	p.browserMu.Lock()
	defer p.browserMu.Unlock()
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		p.browser = nil
	}
	return errors.Join(errs...)
}
