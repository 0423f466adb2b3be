// Package program compiles an automaton descriptor into an executable
// Program.
//
// Compile runs topology resolution, layout, expression rewriting and code
// generation once per distinct descriptor. Results are cached by a
// fingerprint of the descriptor, so constructing many simulators for the
// same automaton compiles it once.
package program

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gogpu/automata/internal/cache"
	"github.com/gogpu/automata/internal/codegen"
	"github.com/gogpu/automata/internal/layout"
	"github.com/gogpu/automata/internal/rewrite"
	"github.com/gogpu/automata/internal/topology"
	"github.com/gogpu/automata/model"
)

// Compile errors.
var (
	ErrInvalidDescriptor     = model.ErrInvalidDescriptor
	ErrDuplicateParameter    = layout.ErrDuplicateParameter
	ErrUnresolvedPlaceholder = rewrite.ErrUnresolvedPlaceholder
)

type (
	// DuplicateParameterError reports a param or var id declared twice for
	// one cell.
	DuplicateParameterError = layout.DuplicateParameterError

	// UnresolvedPlaceholderError reports a placeholder that names nothing
	// the cell can see.
	UnresolvedPlaceholderError = rewrite.UnresolvedPlaceholderError
)

// cacheCapacity bounds the number of compiled programs kept alive.
const cacheCapacity = 64

var programs = cache.New[string, *Program](cacheCapacity)

// Program is a compiled automaton. A Program is immutable and safe for
// concurrent use.
type Program struct {
	// UnitWidth and UnitHeight give the grid of logical units.
	UnitWidth, UnitHeight int

	IterationsPerUpdate int

	Layout *layout.Unit
	Model  *codegen.Model

	descriptor  *model.Descriptor
	plan        *codegen.Plan
	fingerprint string

	wgslOnce sync.Once
	wgsl     string
}

// Compile compiles d, returning a cached Program when an identical
// descriptor was compiled before. d is not retained.
func Compile(d *model.Descriptor) (*Program, error) {
	if d == nil {
		return nil, fmt.Errorf("program: %w: nil descriptor", ErrInvalidDescriptor)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	key, err := Fingerprint(d)
	if err != nil {
		return nil, err
	}
	return programs.GetOrCreate(key, func() (*Program, error) {
		return compile(d, key)
	})
}

// Fingerprint returns a stable hex digest identifying the behavior of d.
func Fingerprint(d *model.Descriptor) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("program: fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CacheStats reports the state of the compiled program cache.
func CacheStats() cache.Stats { return programs.Stats() }

// ClearCache drops every cached program.
func ClearCache() { programs.Clear() }

func compile(d *model.Descriptor, key string) (*Program, error) {
	own, err := clone(d)
	if err != nil {
		return nil, err
	}
	t, err := topology.Resolve(own)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	u, err := layout.Build(t)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	m, err := codegen.Build(own, u)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	plan, err := codegen.BuildPlan(m)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return &Program{
		UnitWidth:           own.Width,
		UnitHeight:          own.Height,
		IterationsPerUpdate: own.Iterations(),
		Layout:              u,
		Model:               m,
		descriptor:          own,
		plan:                plan,
		fingerprint:         key,
	}, nil
}

// clone deep-copies d so later edits by the caller cannot leak into a
// cached program.
func clone(d *model.Descriptor) (*model.Descriptor, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	out := new(model.Descriptor)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return out, nil
}

// Descriptor returns a copy of the compiled descriptor.
func (p *Program) Descriptor() *model.Descriptor {
	d, _ := clone(p.descriptor)
	return d
}

// Fingerprint returns the cache key of p.
func (p *Program) Fingerprint() string { return p.fingerprint }

// UnitCount returns the number of logical units of one automaton.
func (p *Program) UnitCount() int { return p.UnitWidth * p.UnitHeight }

// UnitStateSize returns the number of persisted words of one logical unit.
func (p *Program) UnitStateSize() int { return p.Layout.StateSize() }

// StateSize returns the number of persisted words of one automaton.
func (p *Program) StateSize() int { return p.UnitStateSize() * p.UnitCount() }

// StateIndex returns the index within an automaton's state of the variable
// name of logical unit unit.
func (p *Program) StateIndex(unit int, name string) (int, bool) {
	if unit < 0 || unit >= p.UnitCount() {
		return 0, false
	}
	s, ok := p.Layout.Slot(name)
	if !ok {
		return 0, false
	}
	return s*p.UnitCount() + unit, true
}

// Plan returns the closure plan executed by the CPU backend.
func (p *Program) Plan() *codegen.Plan { return p.plan }

// WGSL returns the compute kernel source. It is generated on first use.
func (p *Program) WGSL() string {
	p.wgslOnce.Do(func() {
		p.wgsl = codegen.GenerateWGSL(p.Model)
	})
	return p.wgsl
}

// WorkgroupSize returns the number of invocations per workgroup of the
// kernel returned by WGSL.
func (p *Program) WorkgroupSize() int { return codegen.WorkgroupSize(p.Model) }

// GoSource renders p as a standalone Go package named pkg.
func (p *Program) GoSource(pkg string) ([]byte, error) {
	src, err := codegen.GenerateGo(p.Model, pkg)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return src, nil
}
