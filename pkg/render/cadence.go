package render

// StreamCutoff returns the minimum content-length delta that justifies an
// edit for the given cumulative content length. Longer content re-renders
// less often, and group chats get coarser tiers since their flood limits
// are stricter.
func StreamCutoff(isGroup bool, contentLen int) int {
	if isGroup {
		switch {
		case contentLen > 1000:
			return 180
		case contentLen > 200:
			return 120
		case contentLen > 50:
			return 90
		default:
			return 50
		}
	}
	switch {
	case contentLen > 1000:
		return 90
	case contentLen > 200:
		return 45
	case contentLen > 50:
		return 25
	default:
		return 15
	}
}

// shouldRender decides whether the candidate content warrants a transport
// edit. The first item of a stream and the terminal flush always render;
// otherwise the length delta has to beat the cadence cutoff plus whatever
// backoff has accumulated from transport failures.
func shouldRender(first, finished bool, prev, candidate string, cutoff int) bool {
	if first || finished {
		return true
	}
	delta := len(candidate) - len(prev)
	if delta < 0 {
		delta = -delta
	}
	return delta > cutoff
}
