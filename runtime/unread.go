package runtime

// Unread is the per-conversation unread counter. It only moves by +1 or by a
// full reset to zero.
type Unread struct {
	count int
	// local is set once the counter moved locally or was hydrated.
	local bool
	// hinted means the value came from the server list snapshot and may
	// count messages that are not in the timeline yet.
	hinted bool
}

func (u Unread) Count() int   { return u.count }
func (u Unread) Hinted() bool { return u.hinted }

func (u *Unread) Increment() {
	u.count++
	u.local = true
}

// Hydrate sets the server-provided count unless a local value already exists.
func (u *Unread) Hydrate(n int) bool {
	if u.local {
		return false
	}
	u.count = max(n, 0)
	u.local = true
	u.hinted = true
	return true
}

// Hint sets a count that the server list may still replace, as long as
// nothing moved the counter locally.
func (u *Unread) Hint(n int) {
	u.count = max(n, 0)
	u.local = false
	u.hinted = u.count > 0
}

// Clear resets the counter and reports whether it was non-zero.
func (u *Unread) Clear() bool {
	changed := u.count != 0
	u.count = 0
	u.local = true
	u.hinted = false
	return changed
}

// Clamp bounds the counter by the number of messages that can be unread.
func (u *Unread) Clamp(limit int) bool {
	if u.count <= limit {
		return false
	}
	u.count = max(limit, 0)
	return true
}
