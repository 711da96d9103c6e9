package game

import (
	"fmt"
	"os"
	"strings"
)

// defaultWordPool is the built-in fallback used when no word file is
// configured or the configured file cannot be read.
var defaultWordPool = []string{
	"APPLE", "BANANA", "CHERRY", "DOG", "ELEPHANT", "FIRE", "GUITAR", "HOUSE",
	"ICE", "JUNGLE", "KING", "LION", "MOON", "NIGHT", "OCEAN", "PIANO",
	"QUEEN", "ROBOT", "STAR", "TREE", "UMBRELLA", "VIOLIN", "WATER", "XRAY", "YELLOW",
}

// LoadWordPool reads a newline-delimited word list from path. An empty path
// or a read failure falls back to the built-in pool. The returned pool is
// deduplicated (case-insensitive) and always holds at least BoardSize words;
// a configured file with fewer distinct words is a hard error, since no game
// can be created from it.
func LoadWordPool(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), defaultWordPool...), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return append([]string(nil), defaultWordPool...), nil
	}

	seen := make(map[string]struct{})
	var pool []string
	for _, line := range strings.Split(string(data), "\n") {
		w := strings.TrimSpace(line)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pool = append(pool, w)
	}
	if len(pool) < 25 {
		return nil, fmt.Errorf("word pool %s has only %d distinct words, need at least 25", path, len(pool))
	}
	return pool, nil
}
