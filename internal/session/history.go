package session

import "github.com/ent0n29/sourcebot/internal/protocol"

// DeactivateLatest walks history newest to oldest and clears the active flag
// on the first pills or card turn that is still active. Older turns are left
// alone. It reports whether a turn was changed.
func DeactivateLatest(turns []protocol.Turn) bool {
	for i := len(turns) - 1; i >= 0; i-- {
		a := turns[i].Assistant
		if turns[i].Role != protocol.RoleAssistant || a == nil || !a.HasPills() {
			continue
		}
		if !a.Active {
			continue
		}
		a.Active = false
		return true
	}
	return false
}

// Trim drops turns from the front until at most limit remain, keeping order.
func Trim(turns []protocol.Turn, limit int) []protocol.Turn {
	if limit <= 0 || len(turns) <= limit {
		return turns
	}
	out := make([]protocol.Turn, limit)
	copy(out, turns[len(turns)-limit:])
	return out
}
