package whitelist

import "strings"

// ParseLines splits a newline-delimited whitelist, trimming each line and
// dropping blanks.
func ParseLines(blob string) []string {
	var lines []string
	for _, line := range strings.Split(blob, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// JoinLines is the inverse of ParseLines.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// Merge recomputes the whitelist from scratch.
//
// Lines not in managed are foreign and kept in place, duplicates included.
// Managed lines survive only if wanted, at their first position. Wanted lines
// not yet present are appended in the order given. Merge(Merge(x)) == Merge(x).
func Merge(current []string, managed map[string]struct{}, wanted []string) []string {
	wantedSet := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		wantedSet[w] = struct{}{}
	}

	out := make([]string, 0, len(current)+len(wanted))
	seen := make(map[string]struct{}, len(wanted))
	for _, line := range current {
		_, owned := managed[line]
		_, want := wantedSet[line]
		switch {
		case want:
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
		case !owned:
			out = append(out, line)
		}
	}

	for _, w := range wanted {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// ApplyDelta removes and adds specific lines without touching anything else.
// A line present in both remove and add is kept.
func ApplyDelta(current, remove, add []string) []string {
	addSet := make(map[string]struct{}, len(add))
	for _, a := range add {
		addSet[a] = struct{}{}
	}
	removeSet := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		if _, keep := addSet[r]; !keep {
			removeSet[r] = struct{}{}
		}
	}

	out := make([]string, 0, len(current)+len(add))
	present := make(map[string]struct{}, len(current))
	for _, line := range current {
		if _, drop := removeSet[line]; drop {
			continue
		}
		present[line] = struct{}{}
		out = append(out, line)
	}
	for _, a := range add {
		if _, ok := present[a]; ok {
			continue
		}
		present[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Equal reports whether two line lists are identical.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
