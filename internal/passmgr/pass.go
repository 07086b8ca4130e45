// Package passmgr implements the pass manager: a registry of
// named analyses and transformations, argument binding, per-instance
// memoization, and preserved-set invalidation, orchestrating work over
// one CFG and its metadata store.
package passmgr

import (
	"sort"
	"strings"

	"ilforge/internal/diag"
	"ilforge/internal/il"
	"ilforge/internal/ilmeta"
)

// Param describes one formal parameter a pass accepts, bound either
// positionally (by declaration order) or by keyword, with an optional
// default used when the caller omits it.
type Param struct {
	Name    string
	Default *string
}

// Args is the fully-resolved argument set handed to a running pass:
// every Param has a concrete value, defaults already applied.
type Args map[string]string

// String returns the bound value of name, or "" if unbound.
func (a Args) String(name string) string { return a[name] }

// Result is what a pass instance produces: arbitrary pass-specific
// data plus the set of other instances its run preserves.
type Result struct {
	Data      interface{}
	Preserved PreservedSet
}

// PreservedSet names which existing pass instances remain valid after
// a transformation runs. Pure analyses always preserve everything
// regardless of what they return here — see Pass.Analysis. A
// transformation that returns the zero PreservedSet invalidates every
// other instance, which is the conservative, always-correct default.
type PreservedSet struct {
	all bool
	ids map[string]bool
}

// PreserveAll marks every instance, of every pass, as still valid.
func PreserveAll() PreservedSet { return PreservedSet{all: true} }

// PreserveNone invalidates every instance except the one just run.
func PreserveNone() PreservedSet { return PreservedSet{} }

// Preserve marks instances of the named passes (any arguments) as
// still valid.
func Preserve(ids ...string) PreservedSet {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return PreservedSet{ids: m}
}

func (p PreservedSet) preserves(id string) bool {
	return p.all || p.ids[id]
}

// Requirer is how a running pass asks the manager for another pass's
// result, triggering it to run if missing or invalidated. Passes
// receive one through Context rather than a *Manager directly so a
// pass body can't reach in and mutate the registry.
type Requirer interface {
	Require(query PassQuery) (Result, error)
}

// Context bundles everything a running pass needs: the CFG and
// metadata store it operates over, its resolved arguments, a way to
// pull dependency results, and a debug sink for progress reporting.
type Context struct {
	CFG   *il.CFG
	Meta  *ilmeta.Store
	Args  Args
	Debug DebugSink

	req Requirer
}

// Require fetches another pass's result, running or re-running it as
// needed. A pass's own getters should route through this rather than
// caching dependency results themselves, so invalidation stays
// centralized in the manager.
func (c *Context) Require(query PassQuery) (Result, error) {
	return c.req.Require(query)
}

// Pass is one registered analysis or transformation.
type Pass interface {
	ID() string
	Describe() string
	Params() []Param
	// Analysis reports whether this pass only reads the CFG/metadata.
	// Running an analysis never invalidates any instance; running a
	// transformation invalidates every other instance, analyses
	// included, whose ID its PreservedSet does not name.
	Analysis() bool
	Run(ctx *Context) (Result, error)
}

// DebugSink receives pass-manager progress events. It costs nothing
// when disabled: NopDebugSink's Event is an empty inlined call.
type DebugSink interface {
	Event(format string, args ...interface{})
}

// NopDebugSink discards every event.
type NopDebugSink struct{}

func (NopDebugSink) Event(format string, args ...interface{}) {}

// PassQuery names a pass and, optionally, a binding for each of its
// parameters. A nil entry in Positional or a nil value in Keyword is
// the "any" wildcard (surface syntax: id(a0, a1, k=v, any)):
// when resolving a Require call with a wildcard present, the manager
// prefers reusing any existing valid instance that matches the
// non-wildcard bindings over instantiating a fresh one.
type PassQuery struct {
	ID         string
	Positional []*string
	Keyword    map[string]*string
}

// ParsePassQuery parses the surface syntax "id" or
// "id(a0, a1, k=v, any)" into a PassQuery.
func ParsePassQuery(s string) (*PassQuery, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return &PassQuery{ID: s}, nil
	}
	if !strings.HasSuffix(s, ")") {
		return nil, diag.New(diag.KindBadArguments, "unterminated argument list in %q", s)
	}
	id := strings.TrimSpace(s[:open])
	body := strings.TrimSpace(s[open+1 : len(s)-1])

	q := &PassQuery{ID: id, Keyword: map[string]*string{}}
	if body == "" {
		return q, nil
	}
	for _, raw := range strings.Split(body, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			return nil, diag.New(diag.KindBadArguments, "empty argument in %q", s)
		}
		if eq := strings.IndexByte(tok, '='); eq >= 0 {
			name := strings.TrimSpace(tok[:eq])
			val := strings.TrimSpace(tok[eq+1:])
			q.Keyword[name] = wildcardOrValue(val)
			continue
		}
		q.Positional = append(q.Positional, wildcardOrValue(tok))
	}
	return q, nil
}

func wildcardOrValue(tok string) *string {
	if tok == "any" {
		return nil
	}
	v := tok
	return &v
}

// bindArgs resolves query against params, applying defaults for
// anything neither positionally nor by-keyword bound and leaving every
// wildcard (explicit "any") unresolved, even for a parameter that has
// a default — the caller decides how to treat those.
func bindArgs(params []Param, query *PassQuery) (resolved Args, wildcard map[string]bool, err error) {
	resolved = Args{}
	wildcard = map[string]bool{}

	if len(query.Positional) > len(params) {
		return nil, nil, diag.New(diag.KindBadArguments, "pass %s: too many positional arguments", query.ID)
	}
	bound := map[string]bool{}
	for i, v := range query.Positional {
		name := params[i].Name
		bound[name] = true
		if v == nil {
			wildcard[name] = true
		} else {
			resolved[name] = *v
		}
	}

	byName := map[string]Param{}
	for _, p := range params {
		byName[p.Name] = p
	}
	for name, v := range query.Keyword {
		if _, ok := byName[name]; !ok {
			return nil, nil, diag.New(diag.KindBadArgument, "pass %s: unknown parameter %q", query.ID, name).WithNote(name)
		}
		if bound[name] {
			return nil, nil, diag.New(diag.KindBadArgument, "pass %s: parameter %q bound both positionally and by keyword", query.ID, name)
		}
		bound[name] = true
		if v == nil {
			wildcard[name] = true
		} else {
			resolved[name] = *v
		}
	}

	for _, p := range params {
		if _, ok := resolved[p.Name]; ok {
			continue
		}
		if wildcard[p.Name] {
			continue
		}
		if p.Default != nil {
			resolved[p.Name] = *p.Default
			continue
		}
		return nil, nil, diag.New(diag.KindBadArguments, "pass %s: missing required parameter %q", query.ID, p.Name)
	}
	return resolved, wildcard, nil
}

// argsKey renders resolved args as a canonical, order-independent
// string for use as part of an instance's memoization key.
func argsKey(args Args) string {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(args[name])
	}
	return sb.String()
}
