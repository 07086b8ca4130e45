package passmgr

import (
	"ilforge/internal/diag"
	"ilforge/internal/interp"
)

// Pipeline is an ordered list of pass invocations, the unit the CLI's
// "ilc opt" subcommand and the pass-preservation test scenarios run.
type Pipeline struct {
	Queries []PassQuery
}

// NewPipeline parses one surface pass query per element ("liveness",
// "copyprop(4)") into a Pipeline; it does not split a comma-separated
// pipeline string itself.
func NewPipeline(surface []string) (*Pipeline, error) {
	p := &Pipeline{}
	for _, s := range surface {
		q, err := ParsePassQuery(s)
		if err != nil {
			return nil, err
		}
		p.Queries = append(p.Queries, *q)
	}
	return p, nil
}

// Run executes every query against m in order, stopping at the first
// error. Cancellation is checked before each step; a cancellation
// mid-pipeline reports the index of the step that was about to run so
// an embedder can resume or report precisely (Extra-carrying
// Cancelled convention, mirrored from the interpreter).
func (p *Pipeline) Run(m *Manager, cancel interp.CancellationToken) ([]Result, error) {
	if cancel == nil {
		cancel = interp.NoCancellation{}
	}
	results := make([]Result, 0, len(p.Queries))
	for i, q := range p.Queries {
		if cancel.Cancelled() {
			e := diag.New(diag.KindCancelled, "pipeline cancelled before step %d (%s)", i, q.ID)
			e.Extra = i
			return results, e
		}
		r, err := m.Require(q)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
