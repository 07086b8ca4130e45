package ilsyntax

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ilforge/internal/il"
	"ilforge/internal/ilmeta"
)

// Print renders cfg and meta back into the surface syntax lower.go
// consumes. Block order follows cfg.Blocks() (insertion order, entry
// first); metadata values are quoted and sorted by key so the output
// is deterministic even though ilmeta.Store.All() is not. Only CFG
// structure round-trips bit-exactly through Parse(Print(...)) —
// metadata line grouping and ordering is not preserved, since the
// store retains no memory of the original lines, only accumulated
// key to values (see ilmeta.Store.All's doc comment).
func Print(cfg *il.CFG, meta *ilmeta.Store) string {
	var sb strings.Builder

	for _, key := range sortedMetaKeys(meta, ilmeta.CFGScope()) {
		writeMetaLine(&sb, ";#!", key, meta.Get(ilmeta.CFGScope(), key, nil))
	}

	for _, b := range cfg.Blocks() {
		sb.WriteString("@" + b.Label + ":\n")

		for _, key := range sortedMetaKeys(meta, ilmeta.BlockScope(b.Label)) {
			writeMetaLine(&sb, ";@!", key, meta.Get(ilmeta.BlockScope(b.Label), key, nil))
		}

		for pos := 0; pos < b.Len(); pos++ {
			inst := b.At(pos)
			sb.WriteString("  " + inst.String() + "\n")
			for _, key := range sortedMetaKeys(meta, ilmeta.InstrScope(b.Label, pos)) {
				writeMetaLine(&sb, "  ;%!", key, meta.Get(ilmeta.InstrScope(b.Label, pos), key, nil))
			}
		}

		if term := b.Terminator(); term != nil {
			sb.WriteString("  " + term.String() + "\n")
		}
	}

	return sb.String()
}

func writeMetaLine(sb *strings.Builder, marker, key string, values []string) {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	fmt.Fprintf(sb, "%s %s = %s\n", marker, key, strings.Join(quoted, ", "))
}

// sortedMetaKeys returns the distinct keys stored at scope, sorted for
// deterministic output. It scans the whole store each call since Store
// exposes no scope-filtered iteration; print is not a hot path.
func sortedMetaKeys(meta *ilmeta.Store, scope ilmeta.Scope) []string {
	seen := make(map[string]bool)
	for _, e := range meta.All() {
		if e.Scope == scope {
			seen[e.Key] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
