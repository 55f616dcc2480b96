// Package naming derives convention-conforming branch names from free text.
//
// Generated names always match <type>/<kebab-case> where type is inferred from
// keywords in the description (defaulting to "feature").
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// maxSlugWords caps how many words from a description end up in the slug.
const maxSlugWords = 5

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// typeKeywords maps description keywords to branch type prefixes.
// Checked in order so more specific intents win over the generic default.
var typeKeywords = []struct {
	prefix   string
	keywords []string
}{
	{"hotfix", []string{"hotfix", "urgent", "critical", "emergency"}},
	{"bugfix", []string{"fix", "bug", "broken", "crash", "error", "issue"}},
	{"docs", []string{"doc", "docs", "documentation", "readme"}},
	{"test", []string{"test", "tests", "testing", "coverage"}},
	{"refactor", []string{"refactor", "restructure", "rewrite", "cleanup"}},
	{"chore", []string{"chore", "bump", "upgrade", "deps", "dependency", "dependencies"}},
	{"release", []string{"release", "version"}},
}

// stopWords are dropped from slugs to keep names short.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true,
	"for": true, "and": true, "in": true, "on": true, "with": true,
	"add": false, // kept: "add" carries meaning in branch names
}

// FromDescription generates a branch name from a free-text description.
// Returns an error if the description yields no usable words.
func FromDescription(description string) (string, error) {
	slug := Slugify(description)
	if slug == "" {
		return "", fmt.Errorf("description %q contains no usable words", description)
	}
	return inferPrefix(description) + "/" + slug, nil
}

// FromChangedFiles generates a branch name from the files touched in the
// working tree, using the most common top-level path segment as the subject.
func FromChangedFiles(files []string) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("no changed files to derive a branch name from")
	}

	counts := make(map[string]int)
	for _, f := range files {
		seg := topSegment(f)
		if seg != "" {
			counts[seg]++
		}
	}

	best := ""
	for seg, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && seg < best) {
			best = seg
		}
	}
	if best == "" {
		return "", fmt.Errorf("no changed files to derive a branch name from")
	}

	slug := Slugify("update " + best)
	return "feature/" + slug, nil
}

// Timestamped generates a last-resort branch name from the current time.
func Timestamped(now time.Time) string {
	return "feature/work-" + now.Format("20060102-150405")
}

// Slugify lowercases text, replaces non-alphanumeric runs with single dashes,
// drops filler words, and caps the word count.
func Slugify(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	collapsed := nonAlphanumeric.ReplaceAllString(lowered, "-")
	collapsed = strings.Trim(collapsed, "-")
	if collapsed == "" {
		return ""
	}

	words := strings.Split(collapsed, "-")
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" || stopWords[w] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == maxSlugWords {
			break
		}
	}
	return strings.Join(kept, "-")
}

// ReuseSuggestions returns alternative names for a burned branch name, in the
// order they should be offered: versioned, dated, continued.
func ReuseSuggestions(branch string, today time.Time) []string {
	return []string{
		branch + "-v2",
		branch + "-" + today.Format("2006-01-02"),
		branch + "-continued",
	}
}

// inferPrefix picks a branch type prefix from keywords in the description.
func inferPrefix(description string) string {
	lowered := strings.ToLower(description)
	words := make(map[string]bool)
	for _, w := range nonAlphanumeric.Split(lowered, -1) {
		words[w] = true
	}

	for _, entry := range typeKeywords {
		for _, kw := range entry.keywords {
			if words[kw] {
				return entry.prefix
			}
		}
	}
	return "feature"
}

func topSegment(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(clean, "/")
	if len(parts) > 1 {
		return Slugify(parts[0])
	}
	// Bare file at the repo root: use its name without extension.
	base := parts[0]
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return Slugify(base)
}
