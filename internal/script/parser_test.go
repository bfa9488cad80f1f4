package script_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/cueline/internal/script"
)

func TestParse_SceneHeaders(t *testing.T) {
	t.Parallel()

	src := "Scene 1\nHello there\nScene 2\nGoodbye now\n"
	m, err := script.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got, want := m.Texts(), []string{"Hello there", "Goodbye now"}; !slices.Equal(got, want) {
		t.Errorf("texts = %q, want %q", got, want)
	}
	if got := []int{m.Scene(0), m.Scene(1)}; !slices.Equal(got, []int{1, 2}) {
		t.Errorf("scenes = %v, want [1 2]", got)
	}
	if m.SceneCount() != 2 {
		t.Errorf("SceneCount = %d, want 2", m.SceneCount())
	}
}

func TestParse_SceneHeaderCaseInsensitiveAndEmbedded(t *testing.T) {
	t.Parallel()

	src := "== SCENE 3 ==\nfirst\n# scene   7: the garden\nsecond\n"
	m, err := script.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if m.Scene(0) != 3 || m.Scene(1) != 7 {
		t.Errorf("scenes = [%d %d], want [3 7]", m.Scene(0), m.Scene(1))
	}
}

func TestParse_SceneNumbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    string
		scenes []int
	}{
		{"fullwidth digits", "Scene ３\nA\nScene １２\nB\n", []int{3, 12}},
		{"arabic-indic digits", "Scene ٢\nA\nScene ٤\nB\n", []int{2, 4}},
		{"devanagari digits", "scene ५\nA\nscene 6\nB\n", []int{5, 6}},
		{"no-break space", "Scene\u00a02\nA\nScene\u30003\nB\n", []int{2, 3}},
		{"too large for int saturates", "Scene 99999999999999999999999999\nA\nScene 2\nB\n", []int{math.MaxInt, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := script.Parse(strings.NewReader(tc.src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got, want := m.Texts(), []string{"A", "B"}; !slices.Equal(got, want) {
				t.Fatalf("texts = %q, want %q (header lines must not become content)", got, want)
			}
			if got := []int{m.Scene(0), m.Scene(1)}; !slices.Equal(got, tc.scenes) {
				t.Errorf("scenes = %v, want %v", got, tc.scenes)
			}
		})
	}
}

func TestParse_DropsMetadataAndNormalizes(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		"🎭 「봄날」 전체 극본",
		"🎭",
		"Scene 1",
		`"Where, oh where…"`,
		"「봄날」 is the title",
		"“quoted”",
		"   ",
		"''",
		"Scene 2",
		"It's late",
	}, "\n")

	m, err := script.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{"Where oh where", "is the title", "quoted", "Its late"}
	if got := m.Texts(); !slices.Equal(got, want) {
		t.Errorf("texts = %q, want %q", got, want)
	}
	wantScenes := []int{1, 1, 1, 2}
	for i, w := range wantScenes {
		if m.Scene(i) != w {
			t.Errorf("Scene(%d) = %d, want %d", i, m.Scene(i), w)
		}
	}
}

func TestParse_NoHeadersChunksByFive(t *testing.T) {
	t.Parallel()

	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, "line "+string(rune('a'+i)))
	}
	m, err := script.Parse(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []int{1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 3, 3}
	for i, w := range want {
		if m.Scene(i) != w {
			t.Errorf("Scene(%d) = %d, want %d", i, m.Scene(i), w)
		}
	}
	if m.SceneCount() != 3 {
		t.Errorf("SceneCount = %d, want 3", m.SceneCount())
	}
}

func TestParse_OnlySceneOneIsRechunked(t *testing.T) {
	t.Parallel()

	// A single explicit "Scene 1" header is indistinguishable from no header
	// and is re-chunked.
	src := "Scene 1\na\nb\nc\nd\ne\nf\n"
	m, err := script.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Scene(5) != 2 {
		t.Errorf("Scene(5) = %d, want 2 (re-chunked)", m.Scene(5))
	}
}

func TestParse_WithChunkSize(t *testing.T) {
	t.Parallel()

	m, err := script.Parse(strings.NewReader("a\nb\nc\nd\n"), script.WithChunkSize(2))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := []int{m.Scene(0), m.Scene(1), m.Scene(2), m.Scene(3)}
	if !slices.Equal(got, []int{1, 1, 2, 2}) {
		t.Errorf("scenes = %v, want [1 1 2 2]", got)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()

	m, err := script.Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
	if m.SceneCount() != 0 {
		t.Errorf("SceneCount = %d, want 0", m.SceneCount())
	}
}

func TestParse_CRLFAndBOM(t *testing.T) {
	t.Parallel()

	m, err := script.Parse(strings.NewReader("\ufeffScene 4\r\nhello\r\nScene 5\r\nbye\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := m.Texts(); !slices.Equal(got, []string{"hello", "bye"}) {
		t.Errorf("texts = %q", got)
	}
	if m.Scene(0) != 4 {
		t.Errorf("Scene(0) = %d, want 4", m.Scene(0))
	}
}

func TestParse_InvariantsHold(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"a\nb",
		"Scene 2\na\nScene 3\nb\nc",
		"x\nScene 9\ny\n🎭\nz",
	}
	for _, in := range inputs {
		m, err := script.Parse(strings.NewReader(in))
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		lines := m.Lines()
		if len(lines) != m.Len() {
			t.Errorf("Parse(%q): len(Lines)=%d, Len=%d", in, len(lines), m.Len())
		}
		for i, l := range lines {
			if l.Index != i {
				t.Errorf("Parse(%q): line %d has Index %d", in, i, l.Index)
			}
			if l.Scene <= 0 {
				t.Errorf("Parse(%q): line %d has non-positive scene %d", in, i, l.Scene)
			}
		}
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "scripts.txt")
	if err := os.WriteFile(path, []byte("Scene 1\nHello there\nScene 2\nGoodbye now\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := script.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := script.LoadFile(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("expected error for missing script")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v should wrap os.ErrNotExist", err)
	}
}

func TestNormalizeLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{`  "Hi," she said…  `, "Hi she said"},
		{"「제목」 안녕하세요", "안녕하세요"},
		{"「a」b「c」", "b"},
		{"“”", ""},
		{"plain", "plain"},
	}
	for _, tc := range tests {
		if got := script.NormalizeLine(tc.in); got != tc.want {
			t.Errorf("NormalizeLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
