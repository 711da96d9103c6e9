package game

import (
	"os"
	"strings"
)

// Dictionary answers whether a clue word is a real word. The engine treats a
// nil Dictionary as permissive (any single token passes), which keeps the
// rules engine usable without a word list on disk.
type Dictionary interface {
	Contains(word string) bool
}

// WordList is a set-backed Dictionary.
type WordList struct {
	words map[string]struct{}
}

// NewWordList builds a case-insensitive word set.
func NewWordList(words []string) *WordList {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &WordList{words: set}
}

// Contains reports membership, case-insensitively.
func (wl *WordList) Contains(word string) bool {
	_, ok := wl.words[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// LoadDictionary reads a newline-delimited dictionary file.
func LoadDictionary(path string) (*WordList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewWordList(strings.Split(string(data), "\n")), nil
}
