package engine

import (
	"sort"

	"dutydesk/internal/domain"
)

// Viewer identifies who is looking at a completion matrix. It is always
// passed explicitly; visibility never depends on ambient state.
type Viewer struct {
	ActorID string
	Role    string
}

// ResolveClientSet returns the obligation's effective client set: direct
// assignments unioned with every group assignment, deduplicated and sorted
// for deterministic output.
func ResolveClientSet(o domain.Obligation) []string {
	seen := map[string]bool{}
	for _, id := range o.DirectClientIDs {
		seen[id] = true
	}
	for _, g := range o.GroupAssignments {
		for _, id := range g.ClientIDs {
			seen[id] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FilterClientSetForViewer applies visibility: a privileged viewer sees the
// full resolved set; anyone else sees exactly the union of their own
// group-assignment entries. A viewer with no group entry sees nothing; the
// direct list is not treated as shared.
func FilterClientSetForViewer(o domain.Obligation, v Viewer, privileged bool) []string {
	if privileged {
		return ResolveClientSet(o)
	}
	seen := map[string]bool{}
	for _, g := range o.GroupAssignments {
		if g.AgentID != v.ActorID {
			continue
		}
		for _, id := range g.ClientIDs {
			seen[id] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func contains(set []string, id string) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}
