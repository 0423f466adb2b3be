package codegen

import (
	"github.com/gogpu/automata/internal/expr"
)

// Plan is a Model compiled to closures for the CPU backend.
//
// A unit's working variables live in a frame of FrameSize words. The frames
// of all units of one instance are laid out back to back in a Workspace
// together with the scratch area through which units exchange the values
// their neighbors read.
type Plan struct {
	Model *Model

	Units         int
	UnitStateSize int
	FrameSize     int
	Iterations    int

	constant []expr.Exec
	dynamic  []expr.Exec

	// exVar and exSource hold, per external, the frame index of the
	// snapshot and of the published source variable.
	exVar     []int
	exSource  []int
	neighbors []int // [external*Units + unit] -> unit that is read
	stored    []int
}

// BuildPlan compiles every statement of m.
func BuildPlan(m *Model) (*Plan, error) {
	p := &Plan{
		Model:         m,
		Units:         m.Units(),
		UnitStateSize: m.UnitStateSize(),
		FrameSize:     m.FrameSize(),
		Iterations:    m.Iterations,
		stored:        m.Stored,
	}
	var err error
	if p.constant, err = compileAll(m, m.Constant); err != nil {
		return nil, err
	}
	if p.dynamic, err = compileAll(m, m.Dynamic); err != nil {
		return nil, err
	}
	for _, ex := range m.Externals {
		v, _ := m.VarIndex(ex.Name)
		src, _ := m.VarIndex(ex.Source)
		p.exVar = append(p.exVar, v)
		p.exSource = append(p.exSource, src)
		for lu := 0; lu < p.Units; lu++ {
			p.neighbors = append(p.neighbors, m.Neighbor(lu, ex.RelRow, ex.RelCol))
		}
	}
	return p, nil
}

func compileAll(m *Model, stmts []*expr.AssignStmt) ([]expr.Exec, error) {
	execs := make([]expr.Exec, 0, len(stmts))
	for _, s := range stmts {
		x, err := expr.CompileStatement(s, m.VarIndex)
		if err != nil {
			return nil, err
		}
		execs = append(execs, x)
	}
	return execs, nil
}

// Workspace is per-instance scratch memory. A workspace may be reused across
// instances and updates but not shared between concurrent runs.
type Workspace struct {
	frames  []int32
	scratch []int32
	frame   []expr.Frame
}

// NewWorkspace allocates a workspace for p.
func (p *Plan) NewWorkspace() *Workspace {
	ws := &Workspace{
		frames:  make([]int32, p.Units*p.FrameSize),
		scratch: make([]int32, len(p.exVar)*p.Units),
		frame:   make([]expr.Frame, p.Units),
	}
	for lu := range ws.frame {
		ws.frame[lu].Vars = ws.frames[lu*p.FrameSize : (lu+1)*p.FrameSize]
	}
	return ws
}

// Load clears the frame of unit lu and fills its state slots from the
// strided instance state, then publishes the loaded values.
func (p *Plan) Load(ws *Workspace, state, input []int32, lu int) {
	f := &ws.frame[lu]
	clear(f.Vars)
	f.Input = input
	for s := 0; s < p.UnitStateSize; s++ {
		f.Vars[s] = state[s*p.Units+lu]
	}
	p.Publish(ws, lu)
}

// Constants evaluates the constant statements of unit lu.
func (p *Plan) Constants(ws *Workspace, lu int) {
	f := &ws.frame[lu]
	for _, x := range p.constant {
		x(f)
	}
}

// Snapshot copies the published neighbor values into the external variables
// of unit lu.
func (p *Plan) Snapshot(ws *Workspace, lu int) {
	vars := ws.frame[lu].Vars
	for e, v := range p.exVar {
		vars[v] = ws.scratch[e*p.Units+p.neighbors[e*p.Units+lu]]
	}
}

// Step evaluates the dynamic statements of unit lu once.
func (p *Plan) Step(ws *Workspace, lu int) {
	f := &ws.frame[lu]
	for _, x := range p.dynamic {
		x(f)
	}
}

// Publish writes the values read by neighbors of unit lu to scratch.
func (p *Plan) Publish(ws *Workspace, lu int) {
	vars := ws.frame[lu].Vars
	for e, src := range p.exSource {
		ws.scratch[e*p.Units+lu] = vars[src]
	}
}

// Store writes the outputs of unit lu back to the strided instance state.
func (p *Plan) Store(ws *Workspace, state []int32, lu int) {
	vars := ws.frame[lu].Vars
	for _, s := range p.stored {
		state[s*p.Units+lu] = vars[s]
	}
}

// Run executes one update of one instance sequentially. Each loop over the
// units is a barrier phase.
func (p *Plan) Run(ws *Workspace, state, input []int32) {
	for lu := 0; lu < p.Units; lu++ {
		p.Load(ws, state, input, lu)
	}
	for lu := 0; lu < p.Units; lu++ {
		p.Constants(ws, lu)
	}
	for it := 0; it < p.Iterations; it++ {
		for lu := 0; lu < p.Units; lu++ {
			p.Snapshot(ws, lu)
		}
		for lu := 0; lu < p.Units; lu++ {
			p.Step(ws, lu)
		}
		for lu := 0; lu < p.Units; lu++ {
			p.Publish(ws, lu)
		}
	}
	for lu := 0; lu < p.Units; lu++ {
		p.Store(ws, state, lu)
	}
}
