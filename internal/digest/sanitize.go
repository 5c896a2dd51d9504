package digest

import (
	"regexp"
	"strings"
)

// Sections required in every published digest, in publication order.
var requiredSections = []string{"Executive Summary", "Policy", "Tools", "Research"}

// EmptySectionPlaceholder is emitted for a required section the model left
// empty. Headings are never removed; absence of items is stated explicitly.
const EmptySectionPlaceholder = "_No significant items found in the past 48 hours._"

var (
	// Matches a section heading in any of the shapes models tend to emit:
	// "## Policy", "**Policy**", "Policy:".
	headingRe = regexp.MustCompile(`(?i)^\s*#{0,6}\s*\**\s*(executive summary|policy|tools|research)\s*\**\s*:?\s*$`)

	// Matches a "Date:" line with optional markdown decoration around the
	// label. The captured value is re-emitted byte for byte.
	dateLineRe = regexp.MustCompile(`(?i)^\s*[*_]*date[*_]*\s*:\s*[*_]*\s*(.+?)\s*[*_]*\s*$`)
)

// signOffPrefixes identify trailing conversational meta-commentary that
// violates the "no extra text" contract.
var signOffPrefixes = []string{
	"let me know",
	"please let me know",
	"i hope this helps",
	"hope this helps",
	"hope that helps",
	"feel free",
	"if you'd like",
	"if you would like",
	"is there anything else",
	"would you like me to",
	"happy to help",
}

// Sanitize applies the deterministic post-processing contract to raw model
// output: Date lines are normalized without touching the date value, trailing
// sign-offs are stripped, and the four required sections are re-emitted
// exactly once each in fixed order. Sanitize is idempotent.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	preamble, sections := parseSections(strings.Split(text, "\n"))

	preamble = stripTrailingMeta(preamble)
	for name, content := range sections {
		sections[name] = stripTrailingMeta(content)
	}

	var parts []string
	if p := strings.TrimSpace(strings.Join(preamble, "\n")); p != "" {
		parts = append(parts, p)
	}
	for _, name := range requiredSections {
		body := strings.TrimSpace(strings.Join(sections[strings.ToLower(name)], "\n"))
		if body == "" {
			body = EmptySectionPlaceholder
		}
		parts = append(parts, "## "+name+"\n\n"+body)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// parseSections splits lines into the preamble and per-section content,
// merging duplicate headings. Date lines are normalized in passing.
func parseSections(lines []string) ([]string, map[string][]string) {
	sections := make(map[string][]string, len(requiredSections))
	var preamble []string
	current := ""

	for _, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			name := canonicalSection(m[1])
			if name != "" {
				if prior, ok := sections[name]; ok && len(prior) > 0 {
					sections[name] = append(prior, "")
				}
				current = name
				continue
			}
		}
		line = normalizeDateLine(line)
		if current == "" {
			preamble = append(preamble, line)
		} else {
			sections[current] = append(sections[current], line)
		}
	}
	return preamble, sections
}

func canonicalSection(matched string) string {
	lower := strings.ToLower(strings.TrimSpace(matched))
	for _, name := range requiredSections {
		if strings.ToLower(name) == lower {
			return lower
		}
	}
	return ""
}

// normalizeDateLine rewrites a decorated Date line to the plain "Date: value"
// form. The value itself is never corrected, reformatted, or invented.
func normalizeDateLine(line string) string {
	if m := dateLineRe.FindStringSubmatch(line); m != nil {
		return "Date: " + m[1]
	}
	return line
}

// stripTrailingMeta removes trailing paragraphs that are conversational
// sign-offs rather than digest content.
func stripTrailingMeta(lines []string) []string {
	for {
		end := len(lines)
		for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		if end == 0 {
			return lines[:0]
		}
		start := end
		for start > 0 && strings.TrimSpace(lines[start-1]) != "" {
			start--
		}
		if !isSignOff(lines[start]) {
			return lines[:end]
		}
		lines = lines[:start]
	}
}

func isSignOff(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	lower = strings.TrimLeft(lower, "*_- ")
	for _, prefix := range signOffPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
