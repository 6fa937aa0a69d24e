package gather

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	triedEmptyFile    = ".tried-empty"
	lastCompletedFile = ".last-completed"
)

// progressTracker manages the .tried-empty and .last-completed files that
// make a prefetch resumable after a crash and idempotent for a given range.
type progressTracker struct {
	mu         sync.Mutex
	triedEmpty map[string]struct{}
	writer     *bufio.Writer
	file       *os.File
	dir        string // <DataDir>/daily
}

// newProgressTracker creates a tracker rooted at dir and loads any existing
// .tried-empty entries.
func newProgressTracker(dir string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}

	pt := &progressTracker{
		triedEmpty: make(map[string]struct{}),
		dir:        dir,
	}

	data, err := os.ReadFile(pt.path(triedEmptyFile))
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if ticker := strings.TrimSpace(line); ticker != "" {
				pt.triedEmpty[ticker] = struct{}{}
			}
		}
	}

	if err := pt.open(); err != nil {
		return nil, err
	}
	return pt, nil
}

func (p *progressTracker) path(name string) string {
	return filepath.Join(p.dir, name)
}

func (p *progressTracker) open() error {
	f, err := os.OpenFile(p.path(triedEmptyFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", triedEmptyFile, err)
	}
	p.file = f
	p.writer = bufio.NewWriter(f)
	return nil
}

// IsTriedEmpty reports whether ticker was already requested and returned no
// bars.
func (p *progressTracker) IsTriedEmpty(ticker string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.triedEmpty[ticker]
	return ok
}

// MarkEmpty records tickers that returned no bars.
func (p *progressTracker) MarkEmpty(tickers []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ticker := range tickers {
		if _, ok := p.triedEmpty[ticker]; ok {
			continue
		}
		p.triedEmpty[ticker] = struct{}{}
		if _, err := p.writer.WriteString(ticker + "\n"); err != nil {
			return fmt.Errorf("writing to %s: %w", triedEmptyFile, err)
		}
	}
	return p.writer.Flush()
}

// MarkCompleted records key (a DateRange string) as fully gathered.
func (p *progressTracker) MarkCompleted(key string) error {
	return os.WriteFile(p.path(lastCompletedFile), []byte(key), 0o644)
}

// LastCompleted returns the last completed key, or "".
func (p *progressTracker) LastCompleted() string {
	data, err := os.ReadFile(p.path(lastCompletedFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// IsCompleted reports whether key was the last completed range.
func (p *progressTracker) IsCompleted(key string) bool {
	return p.LastCompleted() == key
}

// Reset truncates .tried-empty and clears the in-memory set.
func (p *progressTracker) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file != nil {
		p.file.Close()
	}
	p.triedEmpty = make(map[string]struct{})
	if err := os.Remove(p.path(triedEmptyFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", triedEmptyFile, err)
	}
	return p.open()
}

// Close flushes and closes the .tried-empty file.
func (p *progressTracker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		p.writer.Flush()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
