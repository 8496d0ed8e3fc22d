// Package mangle wraps the Google Mangle engine as the query layer over
// extracted facts. Facts are grouped by the source file that produced them so
// a file can be re-extracted without disturbing the rest of the store.
package mangle

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"math"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"switchfacts/internal/logging"
	"switchfacts/internal/types"
)

//go:embed schema/switchfacts.mg
var schemaSource string

// Schema returns the embedded switchfacts schema.
func Schema() string { return schemaSource }

// Config holds Mangle engine configuration.
type Config struct {
	FactLimit    int  `yaml:"fact_limit"`
	QueryTimeout int  `yaml:"query_timeout"` // seconds
	AutoEval     bool `yaml:"auto_eval"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FactLimit:    500000,
		QueryTimeout: 30,
		AutoEval:     true,
	}
}

// QueryResult represents the result of a Mangle query.
type QueryResult struct {
	Bindings []map[string]interface{} `json:"bindings"`
	Duration time.Duration            `json:"duration"`
}

// Stats contains engine statistics.
type Stats struct {
	TotalFacts      int            `json:"total_facts"`
	ExtractedFacts  int            `json:"extracted_facts"`
	Files           int            `json:"files"`
	PredicateCounts map[string]int `json:"predicate_counts"`
	LastUpdate      time.Time      `json:"last_update"`
}

// Persistence describes the durability operations the engine relies on.
type Persistence interface {
	ReplaceFactsForFile(ctx context.Context, file string, facts []types.Fact, contentHash string) error
	LoadFacts(ctx context.Context) (map[string][]types.Fact, error)
	GetFileStates(ctx context.Context) (map[string]string, error)
}

// Engine holds the extracted facts per file and the store derived from them.
// Derived predicates are recomputed from scratch whenever extracted facts
// change, so removing a file never leaves stale conclusions behind.
type Engine struct {
	config Config

	mu              sync.RWMutex
	store           factstore.ConcurrentFactStore
	programInfo     *analysis.ProgramInfo
	predicateIndex  map[string]ast.PredicateSym
	schemaFragments []parse.SourceUnit
	edb             map[string][]ast.Atom
	factCount       int
	factLimitWarned bool
	autoEval        bool
	dirty           bool
	lastUpdate      time.Time
	persistence     Persistence
}

// NewEngine creates a new Mangle engine instance. persistence may be nil.
func NewEngine(cfg Config, persistence Persistence) (*Engine, error) {
	if cfg.FactLimit < 0 {
		return nil, fmt.Errorf("fact limit must be >= 0, got %d", cfg.FactLimit)
	}
	return &Engine{
		config:         cfg,
		store:          factstore.NewConcurrentFactStore(factstore.NewSimpleInMemoryStore()),
		predicateIndex: make(map[string]ast.PredicateSym),
		edb:            make(map[string][]ast.Atom),
		autoEval:       cfg.AutoEval,
		persistence:    persistence,
	}, nil
}

// New creates an engine with the embedded schema loaded.
func New(cfg Config, persistence Persistence) (*Engine, error) {
	e, err := NewEngine(cfg, persistence)
	if err != nil {
		return nil, err
	}
	if err := e.LoadSchemaString(schemaSource); err != nil {
		return nil, fmt.Errorf("load embedded schema: %w", err)
	}
	return e, nil
}

// ToggleAutoEval enables or disables rule evaluation after fact insertion.
// When disabled, rules run on the next RecomputeRules or query.
func (e *Engine) ToggleAutoEval(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoEval = enabled
}

// RecomputeRules forces a re-evaluation of all rules.
func (e *Engine) RecomputeRules() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.programInfo == nil {
		return fmt.Errorf("no schemas loaded; call LoadSchema first")
	}
	return e.evaluateLocked()
}

// LoadSchema loads and compiles a Mangle schema file (.mg).
func (e *Engine) LoadSchema(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return e.LoadSchemaString(string(data))
}

// LoadSchemaString loads and compiles a Mangle schema from string. Fragments
// accumulate, so policy rules can be layered on the base schema.
func (e *Engine) LoadSchemaString(schema string) error {
	unit, err := parse.Unit(bytes.NewReader([]byte(schema)))
	if err != nil {
		return fmt.Errorf("failed to parse schema: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.schemaFragments = append(e.schemaFragments, unit)
	if err := e.rebuildProgramLocked(); err != nil {
		e.schemaFragments = e.schemaFragments[:len(e.schemaFragments)-1]
		return fmt.Errorf("failed to analyze schema: %w", err)
	}
	e.dirty = true
	return nil
}

// rebuildProgramLocked analyzes all loaded schema fragments and refreshes predicate indexes.
func (e *Engine) rebuildProgramLocked() error {
	if len(e.schemaFragments) == 0 {
		return fmt.Errorf("no schemas loaded")
	}

	var clauses []ast.Clause
	var decls []ast.Decl
	for _, fragment := range e.schemaFragments {
		clauses = append(clauses, fragment.Clauses...)
		decls = append(decls, fragment.Decls...)
	}

	programInfo, err := analysis.AnalyzeOneUnit(parse.SourceUnit{Clauses: clauses, Decls: decls}, nil)
	if err != nil {
		return err
	}

	e.programInfo = programInfo
	e.predicateIndex = make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		e.predicateIndex[sym.Symbol] = sym
	}
	logging.KernelDebug("program rebuilt: %d decls, %d rules", len(programInfo.Decls), len(programInfo.Rules))
	return nil
}

// WarmFromPersistence hydrates the engine from the persistence layer.
func (e *Engine) WarmFromPersistence(ctx context.Context) error {
	if isNilPersistence(e.persistence) {
		return nil
	}

	byFile, err := e.persistence.LoadFacts(ctx)
	if err != nil {
		return fmt.Errorf("load persisted facts: %w", err)
	}
	if len(byFile) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.programInfo == nil {
		return fmt.Errorf("no schemas loaded; call LoadSchema before WarmFromPersistence")
	}

	for file, facts := range byFile {
		atoms, err := e.atomsLocked(facts)
		if err != nil {
			return fmt.Errorf("hydrate %s: %w", file, err)
		}
		e.setFileLocked(file, atoms)
	}
	logging.Kernel("warmed %d files (%d facts) from persistence", len(byFile), e.factCount)
	return e.afterChangeLocked()
}

// AddFact inserts a single fact not tied to any file.
func (e *Engine) AddFact(predicate string, args ...interface{}) error {
	return e.AddFacts([]types.Fact{types.NewFact(predicate, args...)})
}

// AddFacts inserts facts not tied to any file. They survive file
// replacement and are never persisted.
func (e *Engine) AddFacts(facts []types.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.programInfo == nil {
		return fmt.Errorf("no schemas loaded; call LoadSchema first")
	}
	atoms, err := e.atomsLocked(facts)
	if err != nil {
		return err
	}
	if err := e.checkLimitLocked(len(atoms)); err != nil {
		return err
	}
	e.edb[""] = append(e.edb[""], atoms...)
	e.factCount += len(atoms)
	return e.afterChangeLocked()
}

// ReplaceFactsForFile swaps the facts extracted from file.
func (e *Engine) ReplaceFactsForFile(file string, facts []types.Fact) error {
	return e.ReplaceFactsForFileWithHash(file, facts, "")
}

// ReplaceFactsForFileWithHash swaps the facts extracted from file and
// persists them together with the content hash they were extracted from.
// The in-memory swap is all-or-nothing.
func (e *Engine) ReplaceFactsForFileWithHash(file string, facts []types.Fact, contentHash string) error {
	if file == "" {
		return fmt.Errorf("file path required")
	}

	e.mu.Lock()
	if e.programInfo == nil {
		e.mu.Unlock()
		return fmt.Errorf("no schemas loaded; call LoadSchema first")
	}

	atoms, err := e.atomsLocked(facts)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.checkLimitLocked(len(atoms) - len(e.edb[file])); err != nil {
		e.mu.Unlock()
		return err
	}
	e.setFileLocked(file, atoms)
	if err := e.afterChangeLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	if !isNilPersistence(e.persistence) {
		if err := e.persistence.ReplaceFactsForFile(context.Background(), file, facts, contentHash); err != nil {
			return fmt.Errorf("persist facts for %s: %w", file, err)
		}
	}
	return nil
}

// RemoveFile drops every fact extracted from file.
func (e *Engine) RemoveFile(file string) error {
	return e.ReplaceFactsForFileWithHash(file, nil, "")
}

// Files returns the files currently holding facts, sorted.
func (e *Engine) Files() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	files := make([]string, 0, len(e.edb))
	for f := range e.edb {
		if f != "" {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files
}

func (e *Engine) setFileLocked(file string, atoms []ast.Atom) {
	e.factCount -= len(e.edb[file])
	if len(atoms) == 0 {
		delete(e.edb, file)
	} else {
		e.edb[file] = atoms
	}
	e.factCount += len(atoms)
	if e.config.FactLimit == 0 || float64(e.factCount) < float64(e.config.FactLimit)*0.7 {
		e.factLimitWarned = false
	}
}

func (e *Engine) checkLimitLocked(delta int) error {
	if e.config.FactLimit > 0 && e.factCount+delta > e.config.FactLimit {
		return fmt.Errorf("fact limit exceeded: %d", e.config.FactLimit)
	}
	return nil
}

func (e *Engine) afterChangeLocked() error {
	e.dirty = true
	e.lastUpdate = time.Now()
	e.maybeWarnFactLimit()
	if !e.autoEval {
		return nil
	}
	return e.evaluateLocked()
}

// evaluateLocked rebuilds the store from the extracted facts and runs the
// rules to fixpoint.
func (e *Engine) evaluateLocked() error {
	timer := logging.StartTimer(logging.CategoryKernel, "evaluate")
	store := factstore.NewConcurrentFactStore(factstore.NewSimpleInMemoryStore())
	for _, atoms := range e.edb {
		for _, atom := range atoms {
			store.Add(atom)
		}
	}

	var err error
	if e.config.FactLimit > 0 {
		_, err = mengine.EvalProgramWithStats(e.programInfo, store, mengine.WithCreatedFactLimit(e.config.FactLimit))
	} else {
		_, err = mengine.EvalProgramWithStats(e.programInfo, store)
	}
	if err != nil {
		return fmt.Errorf("evaluate rules: %w", err)
	}
	e.store = store
	e.dirty = false
	timer.StopWithThreshold(2 * time.Second)
	logging.KernelDebug("evaluation done: %d facts", store.EstimateFactCount())
	return nil
}

// ensureEvaluated brings the store up to date before a read.
func (e *Engine) ensureEvaluated() error {
	e.mu.RLock()
	dirty := e.dirty
	e.mu.RUnlock()
	if !dirty {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty || e.programInfo == nil {
		return nil
	}
	return e.evaluateLocked()
}

// isNilPersistence guards against typed nil persistence implementations.
func isNilPersistence(p Persistence) bool {
	if p == nil {
		return true
	}
	val := reflect.ValueOf(p)
	return val.Kind() == reflect.Ptr && val.IsNil()
}

func (e *Engine) maybeWarnFactLimit() {
	if e.config.FactLimit == 0 || e.factLimitWarned {
		return
	}
	utilization := float64(e.factCount) / float64(e.config.FactLimit)
	if utilization >= 0.85 {
		logging.Get(logging.CategoryKernel).Warn("fact store is %.1f%% of configured capacity (%d / %d)",
			utilization*100, e.factCount, e.config.FactLimit)
		e.factLimitWarned = true
	}
}

func (e *Engine) atomsLocked(facts []types.Fact) ([]ast.Atom, error) {
	atoms := make([]ast.Atom, 0, len(facts))
	for _, f := range facts {
		atom, err := e.factToAtomLocked(f)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	return atoms, nil
}

func (e *Engine) factToAtomLocked(fact types.Fact) (ast.Atom, error) {
	sym, ok := e.predicateIndex[fact.Predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared in schemas", fact.Predicate)
	}
	if len(fact.Args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", fact.Predicate, sym.Arity, len(fact.Args))
	}
	atom, err := fact.ToAtom()
	if err != nil {
		return ast.Atom{}, err
	}
	atom.Predicate = sym
	return atom, nil
}

// Query evaluates a single-atom query such as `case_guard(C, G)` or
// `stmt(Id, /case, "…", 0, Loc)`. Variables bind per row; `_` matches
// anything; a variable repeated across arguments must bind consistently.
func (e *Engine) Query(ctx context.Context, query string) (*QueryResult, error) {
	shape, err := parseQueryShape(query)
	if err != nil {
		return nil, err
	}
	if err := e.ensureEvaluated(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	sym, ok := e.predicateIndex[shape.atom.Predicate.Symbol]
	store := e.store
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", shape.atom.Predicate.Symbol)
	}
	if sym.Arity != len(shape.atom.Args) {
		return nil, fmt.Errorf("predicate %s expects %d args, got %d", sym.Symbol, sym.Arity, len(shape.atom.Args))
	}

	timeoutDuration := 5 * time.Second
	if e.config.QueryTimeout > 0 {
		timeoutDuration = time.Duration(e.config.QueryTimeout) * time.Second
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutDuration)
		defer cancel()
	}

	start := time.Now()
	resultChan := make(chan []map[string]interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		var results []map[string]interface{}
		err := store.GetFacts(ast.NewQuery(sym), func(fact ast.Atom) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if row, ok := shape.match(fact); ok {
				results = append(results, row)
			}
			return nil
		})
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- results
	}()

	select {
	case results := <-resultChan:
		return &QueryResult{Bindings: results, Duration: time.Since(start)}, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("query execution timed out after %v: %w", time.Since(start), ctx.Err())
	}
}

// GetFacts retrieves all facts, extracted or derived, for a predicate.
func (e *Engine) GetFacts(predicate string) ([]types.Fact, error) {
	if err := e.ensureEvaluated(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	sym, ok := e.predicateIndex[predicate]
	store := e.store
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}

	var results []types.Fact
	err := store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		args := make([]interface{}, len(atom.Args))
		for i, arg := range atom.Args {
			args[i] = convertBaseTermToInterface(arg)
		}
		results = append(results, types.Fact{Predicate: predicate, Args: args})
		return nil
	})
	return results, err
}

// FactsForFile returns the extracted facts of one file in insertion order.
func (e *Engine) FactsForFile(file string) []types.Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	atoms := e.edb[file]
	out := make([]types.Fact, 0, len(atoms))
	for _, atom := range atoms {
		args := make([]interface{}, len(atom.Args))
		for i, arg := range atom.Args {
			args[i] = convertBaseTermToInterface(arg)
		}
		out = append(out, types.Fact{Predicate: atom.Predicate.Symbol, Args: args})
	}
	return out
}

// GetStats returns overall statistics for the fact store.
func (e *Engine) GetStats() Stats {
	_ = e.ensureEvaluated()

	e.mu.RLock()
	defer e.mu.RUnlock()

	counts := make(map[string]int)
	for _, sym := range e.store.ListPredicates() {
		n := 0
		_ = e.store.GetFacts(ast.NewQuery(sym), func(ast.Atom) error {
			n++
			return nil
		})
		counts[sym.Symbol] = n
	}

	files := len(e.edb)
	if _, ok := e.edb[""]; ok {
		files--
	}
	return Stats{
		TotalFacts:      e.store.EstimateFactCount(),
		ExtractedFacts:  e.factCount,
		Files:           files,
		PredicateCounts: counts,
		LastUpdate:      e.lastUpdate,
	}
}

// Clear removes all facts. The schema stays loaded.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = factstore.NewConcurrentFactStore(factstore.NewSimpleInMemoryStore())
	e.edb = make(map[string][]ast.Atom)
	e.factCount = 0
	e.factLimitWarned = false
	e.dirty = false
}

// Reset drops every fact, in memory and in persistence, and returns the
// files that held facts. The schema stays loaded.
func (e *Engine) Reset(ctx context.Context) ([]string, error) {
	files := e.Files()
	e.Clear()
	if isNilPersistence(e.persistence) {
		return files, nil
	}
	for _, file := range files {
		if err := e.persistence.ReplaceFactsForFile(ctx, file, nil, ""); err != nil {
			return files, fmt.Errorf("forget %s: %w", file, err)
		}
	}
	logging.Kernel("reset: dropped %d files", len(files))
	return files, nil
}

// Close cleans up engine resources.
func (e *Engine) Close() error {
	return nil
}

type queryShape struct {
	atom ast.Atom
}

func parseQueryShape(query string) (*queryShape, error) {
	clean := strings.TrimSpace(query)
	if clean == "" {
		return nil, fmt.Errorf("empty query")
	}
	clean = strings.TrimSpace(strings.TrimPrefix(clean, "?"))
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "."))

	atom, err := parse.Atom(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query %q: %w", query, err)
	}
	return &queryShape{atom: atom}, nil
}

// match unifies the query atom with fact and returns the variable bindings.
func (q *queryShape) match(fact ast.Atom) (map[string]interface{}, bool) {
	row := make(map[string]interface{})
	bound := make(map[string]ast.Constant)
	for i, arg := range q.atom.Args {
		if i >= len(fact.Args) {
			return nil, false
		}
		got, ok := fact.Args[i].(ast.Constant)
		if !ok {
			return nil, false
		}
		switch want := arg.(type) {
		case ast.Constant:
			if !want.Equals(got) {
				return nil, false
			}
		case ast.Variable:
			if want.Symbol == "_" {
				continue
			}
			if prev, seen := bound[want.Symbol]; seen {
				if !prev.Equals(got) {
					return nil, false
				}
				continue
			}
			bound[want.Symbol] = got
			row[want.Symbol] = constantToInterface(got)
		default:
			return nil, false
		}
	}
	return row, true
}

func convertBaseTermToInterface(term ast.BaseTerm) interface{} {
	switch v := term.(type) {
	case ast.Constant:
		return constantToInterface(v)
	case ast.Variable:
		return v.Symbol
	case ast.ApplyFn:
		return v.String()
	default:
		return fmt.Sprintf("%v", term)
	}
}

// constantToInterface maps name constants to types.MangleAtom so facts read
// back from the store convert to the same atoms they were built from.
func constantToInterface(constant ast.Constant) interface{} {
	switch constant.Type {
	case ast.StringType:
		return constant.Symbol
	case ast.NameType:
		return types.MangleAtom(constant.Symbol)
	case ast.BytesType:
		return constant.Symbol
	case ast.NumberType:
		return constant.NumValue
	case ast.Float64Type:
		return math.Float64frombits(uint64(constant.NumValue))
	default:
		return constant.String()
	}
}
