package gitdiff

import (
	"regexp"
	"strings"
)

// lowPriorityPatterns marks lockfiles, generated assets, and the generated
// API folder. A path containing any of these substrings is low priority.
var lowPriorityPatterns = []string{
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	".generated.", "OpenApi/",
	".min.js", ".min.css",
}

// mediumPriorityExtensions covers structured data, markup, and stylesheets.
var mediumPriorityExtensions = map[string]bool{
	".json": true, ".yaml": true, ".yml": true,
	".css": true, ".scss": true, ".md": true, ".svg": true,
}

// TruncationResult is the size-bounded, redacted form of a raw diff.
type TruncationResult struct {
	DiffText      string   `json:"diff_text"`
	IncludedFiles []string `json:"included_files"`
	ExcludedFiles []string `json:"excluded_files"`
	OriginalSize  int      `json:"original_size"`
	TruncatedSize int      `json:"truncated_size"`
}

// fileChunk is one file's portion of a unified diff.
type fileChunk struct {
	filename string
	text     string
}

// SplitByFile splits a unified diff into per-file chunks. Chunks are
// delimited by "diff --git" header lines; the filename is taken from the
// new-file side of the header.
func SplitByFile(diffRaw string) []fileChunk {
	var chunks []fileChunk
	var currentFile string
	var current strings.Builder
	started := false

	flush := func() {
		if started {
			chunks = append(chunks, fileChunk{filename: currentFile, text: current.String()})
			current.Reset()
		}
	}

	lines := strings.SplitAfter(diffRaw, "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "diff --git") {
			flush()
			started = true
			if _, after, found := strings.Cut(line, " b/"); found {
				currentFile = strings.TrimSpace(after)
			} else {
				currentFile = strings.TrimSpace(line)
			}
			current.WriteString(line)
		} else {
			started = true
			current.WriteString(line)
		}
	}
	flush()

	return chunks
}

// priority buckets a chunk by its path. Every chunk lands in exactly one
// bucket: source code is high, data/markup/styles medium, lockfiles and
// generated output low.
func priority(filename string) int {
	for _, p := range lowPriorityPatterns {
		if strings.Contains(filename, p) {
			return 2
		}
	}
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		if mediumPriorityExtensions[filename[idx:]] {
			return 1
		}
	}
	return 0
}

// Truncate assembles a bounded diff from the raw text, keeping the most
// relevant file chunks. Chunks are visited high -> medium -> low; a chunk is
// included only when it fits the remaining budget, and a skipped chunk stays
// skipped even if later smaller chunks would have fit. This first-fit order
// is deliberate: it keeps the output reproducible. The assembled text is
// masked for credential-shaped substrings as a final pass.
func Truncate(diffRaw string, maxChars int) TruncationResult {
	chunks := SplitByFile(diffRaw)

	var high, medium, low []fileChunk
	for _, ch := range chunks {
		switch priority(ch.filename) {
		case 0:
			high = append(high, ch)
		case 1:
			medium = append(medium, ch)
		default:
			low = append(low, ch)
		}
	}

	var parts []string
	var included, excluded []string
	total := 0

	ordered := make([]fileChunk, 0, len(chunks))
	ordered = append(ordered, high...)
	ordered = append(ordered, medium...)
	ordered = append(ordered, low...)

	for _, ch := range ordered {
		if total+len(ch.text) <= maxChars {
			parts = append(parts, ch.text)
			total += len(ch.text)
			included = append(included, ch.filename)
		} else {
			excluded = append(excluded, ch.filename)
		}
	}

	return TruncationResult{
		DiffText:      MaskSecrets(strings.Join(parts, "\n")),
		IncludedFiles: included,
		ExcludedFiles: excluded,
		OriginalSize:  len(diffRaw),
		TruncatedSize: total,
	}
}

// maskMarker replaces credential values in diff output.
const maskMarker = "***MASKED***"

// sensitivePatterns match credential-shaped key/value pairs. The key name is
// preserved; only the value is masked.
var sensitivePatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{
		regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|auth[_-]?token|access[_-]?token|secret[_-]?key|private[_-]?key)\s*[:=]\s*['"]?([^\s'"]{8,})`),
		"$1=" + maskMarker,
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['"]?([^\s'"]{4,})`),
		"$1=" + maskMarker,
	},
	{
		regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
		"${1}" + maskMarker,
	},
}

// MaskSecrets masks credential-shaped substrings in diff text.
func MaskSecrets(diffText string) string {
	for _, p := range sensitivePatterns {
		diffText = p.re.ReplaceAllString(diffText, p.replacement)
	}
	return diffText
}
