package mysql

import "strings"

// extractRoutineComment pulls a leading comment out of a procedure
// definition for routines that carry no catalog comment. It scans the
// header region between CREATE PROCEDURE and the body (AS/BEGIN/RETURNS)
// and returns the first line comment or block comment it finds.
func extractRoutineComment(definition string) *string {
	if definition == "" {
		return nil
	}
	lines := strings.Split(definition, "\n")

	start := 0
	for i, raw := range lines {
		lower := strings.ToLower(strings.TrimSpace(raw))
		if strings.Contains(lower, "create") && strings.Contains(lower, "procedure") {
			start = i
			break
		}
	}

	blockActive := false
	var blockContent []string

	for _, raw := range lines[start:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "as") || strings.HasPrefix(lower, "begin") || strings.HasPrefix(lower, "returns") {
			break
		}

		if blockActive {
			if before, _, closed := strings.Cut(line, "*/"); closed {
				if trimmed := strings.TrimSpace(before); trimmed != "" {
					blockContent = append(blockContent, trimmed)
				}
				return optionalString(strings.TrimSpace(strings.Join(blockContent, " ")))
			}
			blockContent = append(blockContent, line)
			continue
		}

		if _, after, opened := strings.Cut(line, "/*"); opened {
			blockActive = true
			after = strings.TrimSpace(after)
			if mid, _, closed := strings.Cut(after, "*/"); closed {
				mid = strings.TrimSpace(mid)
				if mid != "" {
					return &mid
				}
				blockActive = false
				blockContent = nil
				continue
			}
			if after != "" {
				blockContent = append(blockContent, after)
			}
			continue
		}

		if strings.HasPrefix(line, "--") {
			return optionalString(strings.TrimSpace(line[2:]))
		}
	}

	// A block comment still open at the end of the header keeps what it
	// collected so far.
	if blockActive && len(blockContent) > 0 {
		return optionalString(strings.TrimSpace(strings.Join(blockContent, " ")))
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
