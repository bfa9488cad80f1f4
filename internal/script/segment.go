package script

// DefaultChunkSize is the number of lines per synthesized scene when a script
// carries no usable scene headers.
const DefaultChunkSize = 5

// ChunkScenes returns scene numbers for n lines grouped into consecutive
// scenes of size lines each, starting at scene 1. The last scene may be
// shorter. A non-positive size falls back to [DefaultChunkSize].
func ChunkScenes(n, size int) []int {
	if size <= 0 {
		size = DefaultChunkSize
	}
	scenes := make([]int, n)
	scene := 1
	for i := range scenes {
		scenes[i] = scene
		if (i+1)%size == 0 {
			scene++
		}
	}
	return scenes
}

// needsChunking reports whether the parsed scene tags carry no information,
// i.e. every line ended up in scene 1.
//
// This cannot tell "no headers at all" apart from a script whose only header
// is "Scene 1"; both get re-chunked.
func needsChunking(scenes []int) bool {
	for _, s := range scenes {
		if s != 1 {
			return false
		}
	}
	return true
}
