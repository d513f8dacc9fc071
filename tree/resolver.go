/*
Package tree resolves downlines over the two hierarchy views.

PURPOSE:
  Given a root user, produce the full descendant set with each descendant
  tagged by which immediate branch of the root it falls under (L, R, or NA).
  Everything downstream (volume aggregation, matching, awards) consumes the
  tagged set this package produces.

MODES:
  Placement: follows left/right child pointers transitively. The branch tag
  is fixed at the first level below the root and inherited unchanged by all
  deeper descendants.

  Referral:  follows child -> sponsor-code edges transitively. The tag is
  the L/R position recorded at the child's own registration, inherited the
  same way down the chain.

CYCLE SAFETY:
  Traversal is an iterative breadth-first walk over an in-memory adjacency
  forest with an explicit visited set. Malformed data (a cycle, a node that
  is its own ancestor) terminates: already-visited ids are terminal. This is
  a correctness requirement, not a style preference.

FAILURE:
  An unknown root id yields an empty descendant set, not an error.
*/
package tree

import (
	"sort"

	"github.com/warp/commission-engine/commission"
)

// Mode selects which hierarchy view to traverse.
type Mode string

const (
	ModePlacement Mode = "placement"
	ModeReferral  Mode = "referral"
)

// Tagged is one descendant with its branch tag relative to the root.
type Tagged struct {
	ID  string
	Leg commission.Leg
}

// =============================================================================
// FOREST - in-memory adjacency over all users
// =============================================================================

// Forest is an arena of user nodes keyed by id, with both hierarchy views
// indexed for traversal. Build it once per batch run from the users table.
type Forest struct {
	nodes      map[string]*commission.UserNode
	byReferral map[string]*commission.UserNode // referral_code -> node
	invitees   map[string][]string             // referral_code -> invited user ids
}

// NewForest indexes the given users. Nodes referencing unknown codes or
// children are kept; their dangling edges simply resolve to nothing.
func NewForest(users []commission.UserNode) *Forest {
	f := &Forest{
		nodes:      make(map[string]*commission.UserNode, len(users)),
		byReferral: make(map[string]*commission.UserNode, len(users)),
		invitees:   make(map[string][]string),
	}
	for i := range users {
		u := users[i]
		f.nodes[u.ID] = &u
		if u.ReferralCode != "" {
			f.byReferral[u.ReferralCode] = f.nodes[u.ID]
		}
	}
	for _, u := range f.nodes {
		if u.SponsorCode != "" {
			f.invitees[u.SponsorCode] = append(f.invitees[u.SponsorCode], u.ID)
		}
	}
	// Deterministic traversal order regardless of map iteration.
	for code := range f.invitees {
		sort.Strings(f.invitees[code])
	}
	return f
}

// Node returns the user with the given id, or nil.
func (f *Forest) Node(id string) *commission.UserNode {
	return f.nodes[id]
}

// Size returns the number of indexed users.
func (f *Forest) Size() int { return len(f.nodes) }

// =============================================================================
// RESOLVE - tagged descendant set
// =============================================================================

// Resolve returns every descendant of root under the given mode, tagged by
// the immediate branch of root it falls under. The root itself is excluded.
func (f *Forest) Resolve(rootID string, mode Mode) []Tagged {
	root := f.nodes[rootID]
	if root == nil {
		return nil
	}

	type item struct {
		id  string
		leg commission.Leg
	}

	visited := map[string]bool{rootID: true}
	var queue []item

	// Seed the queue with the first level below root; the seed tag is
	// inherited unchanged by everything deeper.
	switch mode {
	case ModePlacement:
		if root.LeftChildID != "" {
			queue = append(queue, item{root.LeftChildID, commission.LegLeft})
		}
		if root.RightChildID != "" {
			queue = append(queue, item{root.RightChildID, commission.LegRight})
		}
	case ModeReferral:
		for _, id := range f.invitees[root.ReferralCode] {
			leg := commission.LegNA
			if child := f.nodes[id]; child != nil && (child.Position == commission.LegLeft || child.Position == commission.LegRight) {
				leg = child.Position
			}
			queue = append(queue, item{id, leg})
		}
	default:
		return nil
	}

	var result []Tagged
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if visited[cur.id] {
			continue // already-visited ids are terminal (cycle guard)
		}
		visited[cur.id] = true

		node := f.nodes[cur.id]
		if node == nil {
			// Dangling child pointer; record the id so its sales still
			// attribute to the branch, but it has no further children.
			result = append(result, Tagged{ID: cur.id, Leg: cur.leg})
			continue
		}
		result = append(result, Tagged{ID: cur.id, Leg: cur.leg})

		switch mode {
		case ModePlacement:
			if node.LeftChildID != "" {
				queue = append(queue, item{node.LeftChildID, cur.leg})
			}
			if node.RightChildID != "" {
				queue = append(queue, item{node.RightChildID, cur.leg})
			}
		case ModeReferral:
			for _, id := range f.invitees[node.ReferralCode] {
				queue = append(queue, item{id, cur.leg})
			}
		}
	}

	return result
}

// TaggedSet converts a Resolve result into a buyer-id lookup map.
func TaggedSet(descendants []Tagged) map[string]commission.Leg {
	set := make(map[string]commission.Leg, len(descendants))
	for _, d := range descendants {
		set[d.ID] = d.Leg
	}
	return set
}
