package script

import (
	"slices"
	"testing"
)

func TestNewModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		texts      []string
		scenes     []int
		wantScenes []int
		wantCount  int
	}{
		{"parallel", []string{"a", "b", "c"}, []int{1, 2, 2}, []int{1, 2, 2}, 2},
		{"mismatched lengths", []string{"a", "b"}, []int{3}, []int{1, 1}, 1},
		{"empty", nil, nil, []int{}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := NewModel(tc.texts, tc.scenes)
			if m.Len() != len(tc.texts) {
				t.Fatalf("Len = %d, want %d", m.Len(), len(tc.texts))
			}
			if m.SceneCount() != tc.wantCount {
				t.Errorf("SceneCount = %d, want %d", m.SceneCount(), tc.wantCount)
			}
			got := make([]int, m.Len())
			for i := range got {
				got[i] = m.Scene(i)
			}
			if !slices.Equal(got, tc.wantScenes) {
				t.Errorf("scenes = %v, want %v", got, tc.wantScenes)
			}
		})
	}
}

func TestModel_CopiesInput(t *testing.T) {
	t.Parallel()

	texts := []string{"first", "second"}
	scenes := []int{1, 2}
	m := NewModel(texts, scenes)
	texts[0] = "changed"
	scenes[0] = 9

	if m.Text(0) != "first" || m.Scene(0) != 1 {
		t.Errorf("model changed with its input: %q scene %d", m.Text(0), m.Scene(0))
	}

	out := m.Texts()
	out[1] = "changed"
	if m.Text(1) != "second" {
		t.Errorf("Texts returned the internal slice")
	}
}

func TestModel_Lines(t *testing.T) {
	t.Parallel()

	m := NewModel([]string{"a", "b"}, []int{4, 5})
	want := []Line{{Index: 0, Text: "a", Scene: 4}, {Index: 1, Text: "b", Scene: 5}}
	if got := m.Lines(); !slices.Equal(got, want) {
		t.Errorf("Lines = %+v, want %+v", got, want)
	}
}

func TestChunkScenes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 5, []int{}},
		{7, 3, []int{1, 1, 1, 2, 2, 2, 3}},
		{6, 0, []int{1, 1, 1, 1, 1, 2}},
	}
	for _, tc := range tests {
		if got := ChunkScenes(tc.n, tc.size); !slices.Equal(got, tc.want) {
			t.Errorf("ChunkScenes(%d, %d) = %v, want %v", tc.n, tc.size, got, tc.want)
		}
	}
}
