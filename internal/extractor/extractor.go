// Package extractor drives case extraction over a workspace: it discovers
// source files, parses them, runs entity extraction and publishes each file's
// facts. Unchanged files are skipped by content hash.
package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"switchfacts/internal/config"
	"switchfacts/internal/entities"
	"switchfacts/internal/extraction"
	"switchfacts/internal/logging"
	"switchfacts/internal/metrics"
	"switchfacts/internal/types"
	"switchfacts/internal/world"
)

// ErrTooLarge is returned for files above ExtractionConfig.MaxFileBytes.
var ErrTooLarge = errors.New("file exceeds max_file_bytes")

// Publisher receives the facts of each extracted file. *mangle.Engine
// implements it.
type Publisher interface {
	ReplaceFactsForFileWithHash(file string, facts []types.Fact, contentHash string) error
	RemoveFile(file string) error
}

// StateSource reports the content hash last published for each file.
// *store.FactStore implements it.
type StateSource interface {
	GetFileStates(ctx context.Context) (map[string]string, error)
}

// FileResult is the outcome of extracting one file.
type FileResult struct {
	// Path is workspace-relative with forward slashes; it is the file
	// recorded in every fact.
	Path        string
	Hash        string
	Facts       []types.Fact
	Switches    int
	Faults      []*extraction.InternalError
	ParseErrors []world.ParseError
}

// FileError pairs a path with the error that stopped its extraction.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Summary aggregates one Run.
type Summary struct {
	Files     int
	Extracted int
	Unchanged int
	Removed   int
	Facts     int
	Faults    int
	Failed    []FileError
	Duration  time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithParsers replaces the default parser factory.
func WithParsers(f *world.ParserFactory) Option {
	return func(e *Extractor) { e.parsers = f }
}

// WithMetrics records extraction activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithStateSource seeds incremental extraction from previously published
// hashes.
func WithStateSource(s StateSource) Option {
	return func(e *Extractor) { e.states = s }
}

// Extractor extracts switch facts from the files of one workspace.
type Extractor struct {
	workspace string
	cfg       config.ExtractionConfig
	parsers   *world.ParserFactory
	publisher Publisher
	states    StateSource
	metrics   *metrics.Metrics

	mu       sync.Mutex
	hashes   map[string]string // published path -> content hash
	hydrated bool
}

// New creates an Extractor for workspace. publisher may be nil, in which
// case results are only returned.
func New(workspace string, cfg config.ExtractionConfig, publisher Publisher, opts ...Option) (*Extractor, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	e := &Extractor{
		workspace: abs,
		cfg:       cfg,
		publisher: publisher,
		hashes:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parsers == nil {
		e.parsers = world.DefaultParserFactory()
	}
	return e, nil
}

// Workspace returns the absolute workspace root.
func (e *Extractor) Workspace() string { return e.workspace }

// Rel returns the workspace-relative, slash-separated form of path.
func (e *Extractor) Rel(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.workspace, path)
	}
	rel, err := filepath.Rel(e.workspace, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (e *Extractor) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(e.workspace, filepath.FromSlash(rel))
}

// ExtractFile parses and extracts one file without publishing. With
// FailFast, the first rejected label is returned as the error alongside the
// partial result.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*FileResult, error) {
	rel := e.Rel(path)
	content, err := e.read(rel)
	if err != nil {
		return nil, err
	}
	return e.extractContent(ctx, rel, content)
}

func (e *Extractor) read(rel string) ([]byte, error) {
	path := e.abs(rel)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if e.cfg.MaxFileBytes > 0 && info.Size() > e.cfg.MaxFileBytes {
		return nil, fmt.Errorf("%s (%d bytes): %w", rel, info.Size(), ErrTooLarge)
	}
	return os.ReadFile(path)
}

func (e *Extractor) extractContent(ctx context.Context, rel string, content []byte) (*FileResult, error) {
	sum := sha256.Sum256(content)
	res := &FileResult{Path: rel, Hash: hex.EncodeToString(sum[:])}

	parsed, err := e.parsers.Parse(ctx, rel, content)
	if err != nil {
		return nil, err
	}
	res.ParseErrors = parsed.Errors
	res.Switches = len(parsed.File.Switches)
	for _, pe := range parsed.Errors {
		logging.ExtractWarn("%s:%d:%d: %s", rel, pe.Line, pe.Column, pe.Message)
	}

	opts := extraction.Options{FailFast: e.cfg.FailFast}
	if e.metrics != nil {
		opts.Observer = e.metrics
	}
	sink := extraction.NewMemorySink()
	cx := extraction.NewContext(rel, parsed.Model, sink, opts)

	err = entities.ExtractFile(cx, parsed.File)
	res.Facts = sink.Facts()
	res.Faults = cx.Faults()
	if err != nil {
		return res, err
	}
	logging.ExtractDebug("%s: %d switches, %d facts, %d faults", rel, res.Switches, len(res.Facts), len(res.Faults))
	return res, nil
}

// hydrate loads published hashes from the state source once.
func (e *Extractor) hydrate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hydrated || e.states == nil {
		e.hydrated = true
		return nil
	}
	states, err := e.states.GetFileStates(ctx)
	if err != nil {
		return fmt.Errorf("load file states: %w", err)
	}
	for path, hash := range states {
		e.hashes[path] = hash
	}
	e.hydrated = true
	logging.ExtractDebug("hydrated %d file states", len(states))
	return nil
}

func (e *Extractor) knownHash(rel string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.hashes[rel]
	return h, ok
}

func (e *Extractor) setHash(rel, hash string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if hash == "" {
		delete(e.hashes, rel)
		return
	}
	e.hashes[rel] = hash
}

// Known returns the published files, sorted.
func (e *Extractor) Known() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.hashes))
	for p := range e.hashes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Run extracts every supported file under roots (the workspace when none
// are given), publishes changed files and removes published files that no
// longer exist under the walked roots.
func (e *Extractor) Run(ctx context.Context, roots ...string) (*Summary, error) {
	timer := logging.StartTimer(logging.CategoryExtract, "run")
	defer timer.StopWithThreshold(30 * time.Second)

	if err := e.hydrate(ctx); err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		roots = []string{e.workspace}
	}

	var files []string
	for _, root := range roots {
		found, err := e.Discover(root)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	summary, err := e.ExtractPaths(ctx, files)
	if err != nil {
		return summary, err
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}
	var stale []string
	for _, known := range e.Known() {
		if seen[known] {
			continue
		}
		for _, root := range roots {
			if e.under(known, root) {
				stale = append(stale, known)
				break
			}
		}
	}
	for _, path := range stale {
		if err := e.Remove(path); err != nil {
			summary.Failed = append(summary.Failed, FileError{Path: path, Err: err})
			continue
		}
		summary.Removed++
	}

	logging.Extract("run: %d files, %d extracted, %d unchanged, %d removed, %d failed, %d faults",
		summary.Files, summary.Extracted, summary.Unchanged, summary.Removed, len(summary.Failed), summary.Faults)
	return summary, nil
}

func (e *Extractor) under(rel, root string) bool {
	r := e.Rel(root)
	if r == "." {
		return true
	}
	return rel == r || strings.HasPrefix(rel, r+"/")
}

// ExtractPaths extracts and publishes the given files concurrently, bounded
// by the configured worker count. Per-file failures are collected in the
// summary; only cancellation aborts the batch.
func (e *Extractor) ExtractPaths(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()
	if err := e.hydrate(ctx); err != nil {
		return nil, err
	}

	summary := &Summary{Files: len(paths)}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.Workers)
	for _, p := range paths {
		rel := e.Rel(p)
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			status, res, err := e.process(egCtx, rel)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case metrics.FileExtracted:
				summary.Extracted++
				summary.Facts += len(res.Facts)
				summary.Faults += len(res.Faults)
			case metrics.FileUnchanged:
				summary.Unchanged++
			case metrics.FileFailed:
				summary.Failed = append(summary.Failed, FileError{Path: rel, Err: err})
			}
			return nil
		})
	}
	err := eg.Wait()

	sort.Slice(summary.Failed, func(i, j int) bool { return summary.Failed[i].Path < summary.Failed[j].Path })
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

// process extracts and publishes one file, returning its metrics status.
func (e *Extractor) process(ctx context.Context, rel string) (string, *FileResult, error) {
	start := time.Now()
	status, res, err := e.processFile(ctx, rel)
	if e.metrics != nil {
		e.metrics.FileProcessed(status, time.Since(start))
	}
	if err != nil {
		logging.ExtractError("%s: %v", rel, err)
	}
	return status, res, err
}

func (e *Extractor) processFile(ctx context.Context, rel string) (string, *FileResult, error) {
	content, err := e.read(rel)
	if err != nil {
		return metrics.FileFailed, nil, err
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	if prev, ok := e.knownHash(rel); ok && prev == hash {
		logging.ExtractDebug("%s unchanged", rel)
		return metrics.FileUnchanged, nil, nil
	}

	res, err := e.extractContent(ctx, rel, content)
	if err != nil {
		return metrics.FileFailed, res, err
	}
	if e.publisher != nil {
		if err := e.publisher.ReplaceFactsForFileWithHash(rel, res.Facts, res.Hash); err != nil {
			return metrics.FileFailed, res, fmt.Errorf("publish: %w", err)
		}
	}
	e.setHash(rel, res.Hash)
	return metrics.FileExtracted, res, nil
}

// Remove unpublishes a file.
func (e *Extractor) Remove(path string) error {
	rel := e.Rel(path)
	start := time.Now()
	if e.publisher != nil {
		if err := e.publisher.RemoveFile(rel); err != nil {
			return err
		}
	}
	e.setHash(rel, "")
	if e.metrics != nil {
		e.metrics.FileProcessed(metrics.FileRemoved, time.Since(start))
	}
	logging.Extract("removed %s", rel)
	return nil
}

// =============================================================================
// DISCOVERY
// =============================================================================

// Supported reports whether path has a configured extension with a parser.
func (e *Extractor) Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range e.cfg.Extensions {
		if strings.ToLower(want) == ext {
			return e.parsers.HasParser(path)
		}
	}
	return false
}

// Ignored reports whether a path component or the file name matches an
// ignore pattern.
func (e *Extractor) Ignored(path string) bool {
	rel := e.Rel(path)
	parts := strings.Split(rel, "/")
	for _, pattern := range e.cfg.IgnorePatterns {
		for _, part := range parts {
			if ok, _ := filepath.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

// Discover returns the supported, non-ignored files under root as sorted
// workspace-relative paths. root may itself be a file.
func (e *Extractor) Discover(root string) ([]string, error) {
	root = e.abs(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if e.Supported(root) && !e.Ignored(root) {
			return []string{e.Rel(root)}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.ExtractWarn("walk %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != root && e.Ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && e.Supported(path) {
			files = append(files, e.Rel(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
