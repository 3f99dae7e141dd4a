package vcursor

// hasPrefix tests whether the rune slice s begins with prefix.
func hasPrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

// nearestIndex returns the index of the occurrence of sep in s closest to
// near, or -1 if sep is not present. Ties go to the earlier occurrence.
func nearestIndex(s, sep []rune, near int) int {
	n := len(sep)
	if n == 0 || n > len(s) {
		return -1
	}
	best := -1
	for i := range s[:len(s)-n+1] {
		if !hasPrefix(s[i:], sep) {
			continue
		}
		if best == -1 || abs(i-near) < abs(best-near) {
			best = i
		}
		if i > near {
			// later occurrences only get further away
			break
		}
	}
	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
