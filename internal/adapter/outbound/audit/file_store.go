// Package audit provides the file-based audit store: one active JSONL
// file at a time, rotated by size or age, queryable across every file
// in the directory, and cleaned up past a retention horizon.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/secretgate/secretgate/internal/domain/audit"
)

const (
	defaultPageSize = 50
	minPageSize     = 1
	maxPageSize     = 500
)

// auditFilePattern matches audit-<iso-timestamp-with-colons-as-dashes>.jsonl.
var auditFilePattern = regexp.MustCompile(`^audit-[0-9TZ.-]+\.jsonl$`)

const filenameTimeLayout = "2006-01-02T15-04-05.000Z"

// Config configures a FileStore.
type Config struct {
	// Dir is the directory audit files live in.
	Dir string
	// MaxSizeMB rotates the active file once its size reaches this
	// many megabytes.
	MaxSizeMB int
	// MaxAgeDays rotates the active file once its birth time is this
	// many days old.
	MaxAgeDays int
}

// FileStore implements audit.Store with spec-mandated naming and
// rotation.
type FileStore struct {
	dir        string
	maxSize    int64
	maxAge     time.Duration
	mu         sync.Mutex
	active     *os.File
	activeName string
	activeBorn time.Time
	activeSize int64
	logger     *slog.Logger
}

// NewFileStore creates (or reopens) the active audit file in dir. If
// the newest existing file has not yet crossed a rotation trigger, it
// is reopened as active; otherwise a new file is created.
func NewFileStore(cfg Config, logger *slog.Logger) (*FileStore, error) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	s := &FileStore{
		dir:     cfg.Dir,
		maxSize: int64(cfg.MaxSizeMB) * 1024 * 1024,
		maxAge:  time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		logger:  logger,
	}

	if err := s.reopenOrCreate(time.Now().UTC()); err != nil {
		return nil, err
	}
	return s, nil
}

func newFilename(now time.Time) string {
	return "audit-" + strings.ReplaceAll(now.UTC().Format("2006-01-02T15-04-05.000Z"), ":", "-") + ".jsonl"
}

func bornFromFilename(name string) (time.Time, bool) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "audit-"), ".jsonl")
	t, err := time.Parse(filenameTimeLayout, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *FileStore) listAuditFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !auditFilePattern.MatchString(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// reopenOrCreate picks the active file at startup: the newest existing
// file if it hasn't crossed a rotation trigger, else a fresh one.
func (s *FileStore) reopenOrCreate(now time.Time) error {
	names, err := s.listAuditFiles()
	if err != nil {
		return fmt.Errorf("list audit directory: %w", err)
	}

	if len(names) > 0 {
		newest := names[len(names)-1]
		born, ok := bornFromFilename(newest)
		if ok {
			path := filepath.Join(s.dir, newest)
			info, statErr := os.Stat(path)
			if statErr == nil && info.Size() < s.maxSize && now.Sub(born) < s.maxAge {
				f, openErr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
				if openErr != nil {
					return fmt.Errorf("reopen audit file: %w", openErr)
				}
				s.active = f
				s.activeName = newest
				s.activeBorn = born
				s.activeSize = info.Size()
				return nil
			}
		}
	}

	return s.createActiveLocked(now)
}

func (s *FileStore) createActiveLocked(now time.Time) error {
	name := newFilename(now)
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create audit file: %w", err)
	}
	s.active = f
	s.activeName = name
	s.activeBorn = now
	s.activeSize = 0
	return nil
}

func (s *FileStore) rotateIfNeededLocked(now time.Time) error {
	if s.activeSize < s.maxSize && now.Sub(s.activeBorn) < s.maxAge {
		return nil
	}
	if s.active != nil {
		_ = s.active.Close()
	}
	return s.createActiveLocked(now)
}

// Write appends one entry as a single compact JSON line, rotating
// first if a trigger fires.
func (s *FileStore) Write(entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if err := s.rotateIfNeededLocked(now); err != nil {
		return fmt.Errorf("rotate audit file: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	n, err := s.active.Write(data)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	s.activeSize += int64(n)
	return nil
}

// Query enumerates every audit file, parses each line, filters,
// sorts newest-first, and paginates.
func (s *FileStore) Query(filter audit.Filter) (audit.Page, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < minPageSize {
		pageSize = minPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	names, err := s.listAuditFiles()
	if err != nil {
		return audit.Page{}, fmt.Errorf("list audit directory: %w", err)
	}

	var matched []audit.Entry
	for _, name := range names {
		entries, err := s.readFile(name)
		if err != nil {
			s.logger.Warn("audit query: skipping unreadable file", "file", name, "error", err)
			continue
		}
		for _, e := range entries {
			if !matches(e, filter) {
				continue
			}
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return audit.Page{
		Entries:    matched[start:end],
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    end < total,
	}, nil
}

func (s *FileStore) readFile(name string) ([]audit.Entry, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []audit.Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e audit.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func matches(e audit.Entry, f audit.Filter) bool {
	if f.SecretID != "" && e.SecretID != f.SecretID {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

// Cleanup deletes audit files older than maxAge, never the active
// file a writer may still be appending to.
func (s *FileStore) Cleanup(maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.listAuditFiles()
	if err != nil {
		return fmt.Errorf("list audit directory: %w", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	deleted := 0
	for _, name := range names {
		if name == s.activeName {
			continue
		}
		born, ok := bornFromFilename(name)
		if !ok || !born.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Error("audit cleanup: failed to delete file", "file", name, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info("audit cleanup completed", "deleted", deleted)
	}
	return nil
}

// Close closes the active file handle. Safe to call once.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	err := s.active.Close()
	s.active = nil
	return err
}

// Compile-time interface verification.
var _ audit.Store = (*FileStore)(nil)
