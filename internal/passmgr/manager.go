package passmgr

import (
	"sort"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/ilmeta"
)

type instanceKey struct {
	id   string
	args string
}

type instance struct {
	pass   Pass
	args   Args
	result Result
	valid  bool
}

// Manager owns one CFG, its metadata store, the pass registry, and
// every pass instance run against them so far. It is not safe for
// concurrent use from more than one goroutine — the workbench's
// concurrency model is cooperative single-threading, and the manager
// trusts that invariant rather than taking locks.
type Manager struct {
	cfg      *il.CFG
	meta     *ilmeta.Store
	debug    DebugSink
	reporter *diag.Reporter

	registry map[string]Pass
	order    []instanceKey
	instance map[instanceKey]*instance
}

// New creates a manager over cfg and its metadata store. Pass debug
// output is discarded until SetDebugSink is called, and errors go
// unrecorded until SetReporter is called.
func New(cfg *il.CFG, meta *ilmeta.Store) *Manager {
	return &Manager{
		cfg:      cfg,
		meta:     meta,
		debug:    NopDebugSink{},
		registry: map[string]Pass{},
		instance: map[instanceKey]*instance{},
	}
}

// SetDebugSink wires a non-nop debug channel (cmd/ilc's opt subcommand
// wires one that prints to stderr).
func (m *Manager) SetDebugSink(d DebugSink) {
	if d == nil {
		d = NopDebugSink{}
	}
	m.debug = d
}

// SetReporter wires an embedder-supplied *diag.Reporter as the
// manager's error-recording funnel: every error Require, Register, or
// Explain returns is recorded here before it reaches the caller, so
// the embedder can inspect the full raise history even when it only
// ever surfaces the last error.
func (m *Manager) SetReporter(r *diag.Reporter) {
	m.reporter = r
}

func (m *Manager) record(err error) {
	if m.reporter == nil {
		return
	}
	if de, ok := err.(*diag.Error); ok {
		m.reporter.Record(de)
	}
}

// Register adds a pass to the registry. Re-registering an ID already
// present is an error — registration is a one-time, startup-time
// operation, not a way to override a running instance.
func (m *Manager) Register(p Pass) error {
	if _, exists := m.registry[p.ID()]; exists {
		err := diag.New(diag.KindDuplicateID, "pass %q already registered", p.ID())
		m.record(err)
		return err
	}
	m.registry[p.ID()] = p
	return nil
}

// List returns every registered pass ID, sorted.
func (m *Manager) List() []string {
	ids := make([]string, 0, len(m.registry))
	for id := range m.registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Explain returns one registered pass, so a caller can show its
// Describe text and Params.
func (m *Manager) Explain(id string) (Pass, error) {
	p, ok := m.registry[id]
	if !ok {
		err := diag.New(diag.KindUnknownPass, "no such pass %q", id)
		m.record(err)
		return nil, err
	}
	return p, nil
}

// Require resolves query to a pass instance, running it if no valid
// instance matches, and returns its result. This is the single entry
// point both external callers (the CLI's pipeline runner) and a
// running pass's own Context.Require use.
func (m *Manager) Require(query PassQuery) (Result, error) {
	pass, ok := m.registry[query.ID]
	if !ok {
		err := diag.New(diag.KindUnknownPass, "no such pass %q", query.ID)
		m.record(err)
		return Result{}, err
	}

	resolved, wildcard, err := bindArgs(pass.Params(), query)
	if err != nil {
		m.record(err)
		return Result{}, err
	}

	var result Result
	if len(wildcard) == 0 {
		result, err = m.requireExact(pass, resolved)
	} else {
		result, err = m.requireWildcard(pass, resolved, wildcard)
	}
	if err != nil {
		m.record(err)
	}
	return result, err
}

// requireExact handles a query with no wildcard parameters: exactly
// one instance key is possible.
func (m *Manager) requireExact(pass Pass, resolved Args) (Result, error) {
	key := instanceKey{id: pass.ID(), args: argsKey(resolved)}
	if inst, ok := m.instance[key]; ok && inst.valid {
		return inst.result, nil
	}
	return m.run(pass, key, resolved)
}

// requireWildcard handles a query with "any" in one or more
// parameters: the manager prefers an existing valid instance whose
// resolved (non-wildcard) parameters match, falling back to defaults
// for the wildcarded ones only when no such instance exists.
func (m *Manager) requireWildcard(pass Pass, resolved Args, wildcard map[string]bool) (Result, error) {
	for _, key := range m.order {
		if key.id != pass.ID() {
			continue
		}
		inst, ok := m.instance[key]
		if !ok || !inst.valid {
			continue
		}
		if matchesNonWildcard(inst.args, resolved, wildcard) {
			return inst.result, nil
		}
	}

	for _, p := range pass.Params() {
		if !wildcard[p.Name] {
			continue
		}
		if p.Default == nil {
			return Result{}, diag.New(diag.KindBadArgument, "pass %s: parameter %q is \"any\" but no instance exists to match and no default is defined", pass.ID(), p.Name)
		}
		resolved[p.Name] = *p.Default
	}
	key := instanceKey{id: pass.ID(), args: argsKey(resolved)}
	return m.run(pass, key, resolved)
}

func matchesNonWildcard(instArgs, resolved Args, wildcard map[string]bool) bool {
	for name, v := range resolved {
		if wildcard[name] {
			continue
		}
		if instArgs[name] != v {
			return false
		}
	}
	return true
}

func (m *Manager) run(pass Pass, key instanceKey, args Args) (Result, error) {
	m.debug.Event("running %s", key.id)
	ctx := &Context{CFG: m.cfg, Meta: m.meta, Args: args, Debug: m.debug, req: m}
	result, err := pass.Run(ctx)
	if err != nil {
		m.debug.Event("pass %s failed: %s", key.id, err)
		return Result{}, err
	}

	inst, existed := m.instance[key]
	if !existed {
		inst = &instance{pass: pass, args: args}
		m.instance[key] = inst
		m.order = append(m.order, key)
	}
	inst.result = result
	inst.valid = true

	if !pass.Analysis() {
		m.invalidate(key, result.Preserved)
	}
	return result, nil
}

// invalidate marks every instance other than keep as invalid unless
// preserved explicitly names its pass ID. This only runs after a
// transformation (analyses never call it, since Run skips this path
// when pass.Analysis() is true) — a transformation can move the CFG
// out from under any cached analysis, so the conservative default is
// to drop everything it doesn't name.
func (m *Manager) invalidate(keep instanceKey, preserved PreservedSet) {
	for key, inst := range m.instance {
		if key == keep {
			continue
		}
		if preserved.preserves(key.id) {
			continue
		}
		inst.valid = false
	}
}
