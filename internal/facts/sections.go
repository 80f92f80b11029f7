// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package facts

import "strings"

const (
	sectionStartPrefix = "=== TSIM_SECTION_START:"
	sectionEndPrefix   = "=== TSIM_SECTION_END:"
	sectionMarkerSuffix = " ==="
	exitCodeSentinel    = "\nEXIT_CODE:"
)

// section is one extracted, trimmed section body keyed by its name, in
// the order encountered in the source text.
type section struct {
	name string
	body string
}

// extractSections scans content for TSIM_SECTION_START/END markers and
// returns each section's name and trimmed body, in encounter order. A
// section body ends at its END marker or at the first "EXIT_CODE:"
// sentinel, whichever comes first (spec §4.1). An absent section is
// simply not present in the result; this is not an error.
func extractSections(content string) []section {
	var out []section
	pos := 0
	for {
		rel := strings.Index(content[pos:], sectionStartPrefix)
		if rel < 0 {
			break
		}
		start := pos + rel
		lineEnd := strings.IndexByte(content[start:], '\n')
		if lineEnd < 0 {
			break
		}
		header := content[start : start+lineEnd]
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(header[len(sectionStartPrefix):]), sectionMarkerSuffix))

		bodyStart := start + lineEnd + 1
		// A line of three dashes introduces the body; skip it if present.
		rest := content[bodyStart:]
		if dashEnd := dashLineLen(rest); dashEnd >= 0 {
			bodyStart += dashEnd
		}

		rest = content[bodyStart:]
		endMarker := sectionEndPrefix + name + sectionMarkerSuffix
		endRel := strings.Index(rest, endMarker)
		exitRel := strings.Index(rest, exitCodeSentinel)
		if strings.HasPrefix(rest, exitCodeSentinel[1:]) {
			// Empty body: the sentinel follows the "---" line directly.
			exitRel = 0
		}

		bodyLen := -1
		if endRel >= 0 {
			bodyLen = endRel
		}
		if exitRel >= 0 && (bodyLen < 0 || exitRel < bodyLen) {
			bodyLen = exitRel
		}
		if bodyLen < 0 {
			bodyLen = len(rest)
		}

		body := strings.TrimRight(rest[:bodyLen], " \t\r\n")
		out = append(out, section{name: name, body: body})

		next := strings.Index(rest, sectionEndPrefix)
		if next < 0 {
			break
		}
		pos = bodyStart + next + len(sectionEndPrefix)
	}
	return out
}

// dashLineLen returns the byte length (including trailing newline) of a
// leading "---" line, or -1 if rest does not start with one.
func dashLineLen(rest string) int {
	trimmed := strings.TrimLeft(rest, "\r\n")
	skipped := len(rest) - len(trimmed)
	if !strings.HasPrefix(trimmed, "---") {
		return -1
	}
	lineEnd := strings.IndexByte(trimmed, '\n')
	if lineEnd < 0 {
		return -1
	}
	return skipped + lineEnd + 1
}

// find returns the body of the first section with the given exact name.
func find(sections []section, name string) (string, bool) {
	for _, s := range sections {
		if s.name == name {
			return s.body, true
		}
	}
	return "", false
}
