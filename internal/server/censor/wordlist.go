// Package censor flags text containing banned words.
package censor

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// WordList matches banned words as case-insensitive substrings.
type WordList struct {
	words []string
}

func NewWordList(words []string) *WordList {
	wl := &WordList{}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			wl.words = append(wl.words, w)
		}
	}
	return wl
}

// LoadWordList reads one word per line. Blank lines and lines starting
// with # are skipped.
func LoadWordList(path string) (*WordList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}

	return NewWordList(words), nil
}

func (wl *WordList) HasCensoredWord(text string) bool {
	text = strings.ToLower(text)
	for _, w := range wl.words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func (wl *WordList) Len() int {
	return len(wl.words)
}
