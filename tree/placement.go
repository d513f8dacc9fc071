package tree

import (
	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// SPILLOVER PLACEMENT
// =============================================================================

// Slot is a free placement position found by PlaceUnder.
type Slot struct {
	ParentID string
	Side     commission.Leg
}

// PlaceUnder finds the placement slot for a new registration under sponsor.
// The preferred side is taken when free; otherwise the nearest free slot in
// the sponsor's branch is found by breadth-first search (spillover). When a
// side is preferred, spillover stays within that side's subtree.
//
// Placement is decided once at registration and never revisited: the caller
// persists the chosen slot via the store, which refuses to overwrite an
// already-set child pointer.
func (f *Forest) PlaceUnder(sponsorID string, preferred commission.Leg) (Slot, error) {
	root := f.nodes[sponsorID]
	if root == nil {
		return Slot{}, commission.ErrUserNotFound
	}

	// Direct slot on the preferred side.
	switch preferred {
	case commission.LegLeft:
		if root.LeftChildID == "" {
			return Slot{ParentID: sponsorID, Side: commission.LegLeft}, nil
		}
	case commission.LegRight:
		if root.RightChildID == "" {
			return Slot{ParentID: sponsorID, Side: commission.LegRight}, nil
		}
	default:
		// No preference: leftmost free slot anywhere under the sponsor.
		if root.LeftChildID == "" {
			return Slot{ParentID: sponsorID, Side: commission.LegLeft}, nil
		}
		if root.RightChildID == "" {
			return Slot{ParentID: sponsorID, Side: commission.LegRight}, nil
		}
	}

	// Spillover: breadth-first first-free-slot search.
	var queue []string
	switch preferred {
	case commission.LegLeft:
		queue = append(queue, root.LeftChildID)
	case commission.LegRight:
		queue = append(queue, root.RightChildID)
	default:
		queue = append(queue, root.LeftChildID, root.RightChildID)
	}

	visited := map[string]bool{sponsorID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == "" || visited[id] {
			continue
		}
		visited[id] = true

		node := f.nodes[id]
		if node == nil {
			continue
		}
		if node.LeftChildID == "" {
			return Slot{ParentID: id, Side: commission.LegLeft}, nil
		}
		if node.RightChildID == "" {
			return Slot{ParentID: id, Side: commission.LegRight}, nil
		}
		queue = append(queue, node.LeftChildID, node.RightChildID)
	}

	return Slot{}, commission.ErrNoFreeSlot
}
