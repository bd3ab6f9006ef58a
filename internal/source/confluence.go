package source

import (
	"regexp"
	"strings"
)

var (
	// heading lines opening a project-only block at the top of a page
	unwantedTopRe = regexp.MustCompile(`(?i)^(?:#{1,6}\s*)?(?:contents?|important\s+links?|project\s+team(?:\s*\(contact\s*people\))?)\s*$`)

	// headings that end a top block; matched at line start only
	necessaryRe = regexp.MustCompile(`(?i)^(?:#{1,6}\s*)?(?:summary|overview|background\s*&\s*research)\b`)

	// heading lines after which the rest of the page is project-only
	unwantedBottomRe = regexp.MustCompile(`(?i)^(?:#{1,6}\s*)?(?:meeting\s+summaries?|changelog|references?|tasks?)\s*$`)

	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// StripConfluence removes the project-management boilerplate of exported
// Confluence pages. A block from a top heading (Contents, Important links,
// Project team) up to the next Summary, Overview or Background & Research
// heading is dropped, as is everything from a trailing heading (Meeting
// summaries, Changelog, References, Tasks) to the end. Headings may carry a
// Markdown marker. A top block with no following section heading is kept.
func StripConfluence(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if unwantedBottomRe.MatchString(line) {
			break
		}

		if unwantedTopRe.MatchString(line) {
			if next := nextNecessary(lines, i+1); next >= 0 {
				i = next - 1
				continue
			}
		}

		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func nextNecessary(lines []string, from int) int {
	for j := from; j < len(lines); j++ {
		if necessaryRe.MatchString(lines[j]) {
			return j
		}
	}
	return -1
}
