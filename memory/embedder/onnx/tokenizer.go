package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Special token IDs shared by the bert-base-uncased vocabulary family,
// which all-MiniLM-L6-v2 uses.
const (
	unkTokenID = 100
	clsTokenID = 101
	sepTokenID = 102
)

// Tokenizer is a lowercase WordPiece tokenizer driven by a HuggingFace
// tokenizer.json vocabulary.
type Tokenizer struct {
	vocab map[string]int
}

// LoadTokenizer reads the vocabulary from a tokenizer.json file.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s has an empty vocabulary", path)
	}

	return &Tokenizer{vocab: file.Model.Vocab}, nil
}

// Encode returns [CLS] tokens [SEP], truncated so the sequence fits maxLen.
func (t *Tokenizer) Encode(text string, maxLen int) []int64 {
	ids := []int64{clsTokenID}
	for _, word := range splitWords(text) {
		for _, piece := range t.wordPieces(word) {
			if len(ids) == maxLen-1 {
				return append(ids, sepTokenID)
			}
			ids = append(ids, piece)
		}
	}
	return append(ids, sepTokenID)
}

// splitWords lowercases text and splits it on whitespace, emitting each
// punctuation rune as its own word.
func splitWords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// wordPieces greedily matches the longest vocabulary prefix, marking
// continuation pieces with "##". A word with any unmatched remainder maps
// to a single [UNK].
func (t *Tokenizer) wordPieces(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{int64(id)}
	}

	var pieces []int64
	runes := []rune(word)
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := -1
		for ; end > start; end-- {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				matched = id
				break
			}
		}
		if matched < 0 {
			return []int64{unkTokenID}
		}
		pieces = append(pieces, int64(matched))
		start = end
	}
	return pieces
}
