// Package script parses rehearsal scripts into an ordered, scene-tagged line
// model.
//
// A script is plain UTF-8 text with one spoken line per text line. Lines
// containing "Scene <n>" (case-insensitive) switch the current scene and are
// not content. Title banners and decorative marker lines are dropped, and the
// remaining text is stripped of quotation marks, ellipses and 「…」 title
// fragments.
//
// When no line ends up outside scene 1 the scene tags are discarded and
// re-derived by chunking the script into groups of [DefaultChunkSize] lines,
// so that the UI always has a multi-scene partition to show progress with.
package script

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxLineBytes bounds a single script line. bufio.Scanner's 64 KiB default is
// too small for scripts pasted as one paragraph per line.
const maxLineBytes = 1 << 20

var (
	// Digits and spacing are Unicode-aware: "Scene ３" and "Scene\u00a0٣"
	// are headers too.
	sceneHeader = regexp.MustCompile(`(?i)scene[\s\v\p{Z}]+(\p{Nd}+)`)
	titleQuote  = regexp.MustCompile(`「.*?」`)

	// punctuation that never helps alignment and is removed from every line.
	punctStripper = strings.NewReplacer(
		`"`, "",
		`'`, "",
		"“", "",
		"”", "",
		",", "",
		"…", "",
	)

	// metadataMarkers identify non-content lines: the "full script" title
	// banner and the theatre-mask glyph used as a decoration.
	metadataMarkers = []string{"전체 극본", "🎭"}
)

// Option configures [Parse] and [LoadFile].
type Option func(*parser)

// WithChunkSize sets the number of lines per synthesized scene used when the
// script has no scene headers. Default: [DefaultChunkSize].
func WithChunkSize(n int) Option {
	return func(p *parser) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

type parser struct {
	chunkSize int
}

// LoadFile opens the script at path and parses it. A missing or unreadable
// file is returned as an error; callers are expected to treat it as fatal.
func LoadFile(path string, opts ...Option) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script: open %q: %w", path, err)
	}
	defer f.Close()

	m, err := Parse(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("script: parse %q: %w", path, err)
	}
	return m, nil
}

// Parse reads a script from r and returns its [Model].
func Parse(r io.Reader, opts ...Option) (*Model, error) {
	p := &parser{chunkSize: DefaultChunkSize}
	for _, o := range opts {
		o(p)
	}

	var (
		texts   []string
		scenes  []int
		current = 1
		first   = true
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		raw := sc.Text()
		if first {
			raw = strings.TrimPrefix(raw, "\ufeff")
			first = false
		}
		raw = norm.NFC.String(raw)

		if m := sceneHeader.FindStringSubmatch(raw); m != nil {
			current = parseSceneNumber(m[1])
			continue
		}

		if isMetadata(raw) {
			continue
		}

		text := NormalizeLine(raw)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		scenes = append(scenes, current)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("script: read: %w", err)
	}

	if needsChunking(scenes) {
		slog.Debug("script: no scene headers found, chunking",
			"lines", len(texts),
			"chunk_size", p.chunkSize,
		)
		scenes = ChunkScenes(len(texts), p.chunkSize)
	}

	return NewModel(texts, scenes), nil
}

// parseSceneNumber reads a run of Unicode decimal digits. Numbers past
// math.MaxInt saturate instead of dropping the header, so two such scenes
// share one number.
func parseSceneNumber(digits string) int {
	n := 0
	for _, r := range digits {
		d := digitValue(r)
		if n > (math.MaxInt-d)/10 {
			return math.MaxInt
		}
		n = n*10 + d
	}
	return n
}

// digitValue returns the value of a decimal digit rune. Unicode encodes every
// decimal digit set as a contiguous run from zero to nine, and adjacent sets
// are whole runs, so the value is the offset from the start of the block
// modulo ten.
func digitValue(r rune) int {
	start := r
	for unicode.IsDigit(start - 1) {
		start--
	}
	return int(r-start) % 10
}

// NormalizeLine strips quotation marks, commas, ellipses and 「…」 title
// fragments from s and trims surrounding whitespace.
func NormalizeLine(s string) string {
	s = punctStripper.Replace(strings.TrimSpace(s))
	s = titleQuote.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func isMetadata(line string) bool {
	for _, marker := range metadataMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
