package engagement

// AsState returns the state a direction lands on.
func (d Direction) AsState() State {
	if d == DirDislike {
		return StateDisliked
	}
	return StateLiked
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirDislike {
		return DirLike
	}
	return DirDislike
}

// Next returns the state after applying dir to old. Toggling the direction
// the user already holds retracts to none; anything else lands on the
// direction. This is the whole 3-state machine, shared by every subject
// kind.
func Next(old State, dir Direction) State {
	if old == dir.AsState() {
		return StateNone
	}
	return dir.AsState()
}

// Deltas returns the like/dislike counter adjustments for an old→next
// transition. Both deltas derive from the same state pair, so the like and
// dislike counters cannot drift through separately written paths.
func Deltas(old, next State) (likeDelta, dislikeDelta int) {
	likeDelta = btoi(next == StateLiked) - btoi(old == StateLiked)
	dislikeDelta = btoi(next == StateDisliked) - btoi(old == StateDisliked)
	return likeDelta, dislikeDelta
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
