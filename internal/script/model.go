package script

// Line is one content line of a parsed script. Index is the zero-based
// position in the script and is the only identity a line has.
type Line struct {
	Index int    `json:"idx"`
	Text  string `json:"text"`
	Scene int    `json:"scene"`
}

// Model is the parsed, immutable script: ordered lines plus a parallel scene
// number per line. A Model is read-only after construction and safe for
// concurrent use. Reloading a script means building a new Model.
type Model struct {
	texts      []string
	scenes     []int
	sceneCount int
}

// NewModel builds a Model from ordered line texts and their scene numbers.
//
// When scenes does not have exactly one entry per text every line is
// reported in scene 1. This is a degraded view, not an error.
func NewModel(texts []string, scenes []int) *Model {
	t := make([]string, len(texts))
	copy(t, texts)

	s := make([]int, len(texts))
	if len(scenes) == len(texts) {
		copy(s, scenes)
	} else {
		for i := range s {
			s[i] = 1
		}
	}

	return &Model{
		texts:      t,
		scenes:     s,
		sceneCount: countDistinct(s),
	}
}

// Len returns the number of content lines.
func (m *Model) Len() int { return len(m.texts) }

// SceneCount returns the number of distinct scene numbers.
func (m *Model) SceneCount() int { return m.sceneCount }

// Text returns the text of line i. It panics if i is out of range.
func (m *Model) Text(i int) string { return m.texts[i] }

// Scene returns the scene number of line i. It panics if i is out of range.
func (m *Model) Scene(i int) int { return m.scenes[i] }

// Texts returns a copy of all line texts in script order.
func (m *Model) Texts() []string {
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// Lines returns every line as an (index, text, scene) triple in script order.
func (m *Model) Lines() []Line {
	out := make([]Line, len(m.texts))
	for i, t := range m.texts {
		out[i] = Line{Index: i, Text: t, Scene: m.scenes[i]}
	}
	return out
}

func countDistinct(values []int) int {
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
