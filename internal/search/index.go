// Package search ranks registered signatures against free-text queries with
// BM25, falling back to edit distance on the function name for typos.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/skelly-dev/sigreg/internal/registry"
)

const Version = "signature-index-v1"

var wordPattern = regexp.MustCompile(`[A-Za-z0-9_$]+`)

type Document struct {
	ID            string         `json:"id"`
	TextSignature string         `json:"text_signature"`
	Name          string         `json:"name"`
	Length        int            `json:"length"`
	Terms         map[string]int `json:"terms"`
}

type Index struct {
	Version       string         `json:"version"`
	DocumentCount int            `json:"document_count"`
	AvgDocLength  float64        `json:"avg_doc_length"`
	DocFreq       map[string]int `json:"doc_freq"`
	Documents     []Document     `json:"documents"`
}

type Result struct {
	ID            string  `json:"id"`
	TextSignature string  `json:"text_signature"`
	Score         float64 `json:"score"`
}

func Build(sigs []registry.Signature) *Index {
	documents := make([]Document, 0, len(sigs))
	docFreq := make(map[string]int)
	totalLength := 0

	for _, sig := range sigs {
		name, params := splitSignature(sig.TextSignature)
		terms := buildTerms(name, params)
		length := 0
		for _, count := range terms {
			length += count
		}
		if length == 0 {
			continue
		}

		documents = append(documents, Document{
			ID:            sig.ID,
			TextSignature: sig.TextSignature,
			Name:          name,
			Length:        length,
			Terms:         terms,
		})
		totalLength += length
		for term := range terms {
			docFreq[term]++
		}
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].TextSignature < documents[j].TextSignature
	})

	avgDocLength := 0.0
	if len(documents) > 0 {
		avgDocLength = float64(totalLength) / float64(len(documents))
	}

	return &Index{
		Version:       Version,
		DocumentCount: len(documents),
		AvgDocLength:  avgDocLength,
		DocFreq:       docFreq,
		Documents:     documents,
	}
}

func Search(index *Index, query string, limit int) []Result {
	if index == nil || len(index.Documents) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	uniqueTerms := dedupe(tokenize(query))
	if len(uniqueTerms) == 0 {
		return nil
	}

	const (
		k1 = 1.2
		b  = 0.75
	)
	n := float64(index.DocumentCount)
	avgLen := index.AvgDocLength
	if avgLen <= 0 {
		avgLen = 1
	}

	results := make([]Result, 0)
	for _, doc := range index.Documents {
		score := 0.0
		docLen := float64(doc.Length)
		for _, term := range uniqueTerms {
			tf := float64(doc.Terms[term])
			if tf <= 0 {
				continue
			}
			df := float64(index.DocFreq[term])
			if df <= 0 {
				continue
			}
			idf := math.Log(1.0 + ((n - df + 0.5) / (df + 0.5)))
			score += idf * (tf * (k1 + 1.0)) / (tf + k1*(1.0-b+b*(docLen/avgLen)))
		}
		if score > 0 {
			results = append(results, Result{ID: doc.ID, TextSignature: doc.TextSignature, Score: score})
		}
	}

	if len(results) == 0 {
		return fuzzyNameFallback(index.Documents, query, limit)
	}
	return rank(results, limit)
}

// splitSignature separates "name(params)" into the name and the raw
// parameter text.
func splitSignature(text string) (string, string) {
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return text, ""
	}
	return text[:open], text[open:]
}

func buildTerms(name, params string) map[string]int {
	terms := make(map[string]int)
	if whole := strings.ToLower(name); whole != "" {
		terms[whole] += 4
	}
	parts := splitCamel(name)
	if len(parts) > 1 {
		for _, part := range parts {
			terms[part] += 3
		}
	}
	for _, token := range tokenize(params) {
		terms[token]++
	}
	return terms
}

// tokenize lowercases words and also emits their camelCase parts, so
// "transferFrom" matches both "transferfrom" and "from".
func tokenize(value string) []string {
	var out []string
	for _, word := range wordPattern.FindAllString(value, -1) {
		out = append(out, strings.ToLower(word))
		if parts := splitCamel(word); len(parts) > 1 {
			out = append(out, parts...)
		}
	}
	return out
}

// splitCamel splits "safeTransferFrom" into safe/transfer/from and
// "ERC20Mint" into erc20/mint. Underscores also separate words.
func splitCamel(word string) []string {
	runes := []rune(word)
	var (
		parts []string
		start int
	)
	flush := func(end int) {
		if end > start {
			part := strings.Trim(strings.ToLower(string(runes[start:end])), "_$")
			if part != "" {
				parts = append(parts, part)
			}
		}
		start = end
	}
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		switch {
		case cur == '_' || cur == '$':
			flush(i)
		case unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush(i)
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			flush(i)
		}
	}
	flush(len(runes))
	return parts
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

func rank(results []Result, limit int) []Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].TextSignature < results[j].TextSignature
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func fuzzyNameFallback(documents []Document, query string, limit int) []Result {
	name, _ := splitSignature(strings.TrimSpace(query))
	needle := strings.ToLower(name)
	if needle == "" {
		return nil
	}

	results := make([]Result, 0)
	for _, doc := range documents {
		candidate := strings.ToLower(doc.Name)
		if candidate == "" {
			continue
		}
		distance := levenshteinDistance(needle, candidate)
		threshold := max(len(candidate)/3, 2)
		if distance > threshold {
			continue
		}
		results = append(results, Result{
			ID:            doc.ID,
			TextSignature: doc.TextSignature,
			Score:         1.0 / float64(1+distance),
		})
	}
	return rank(results, limit)
}

func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[j] = min(current[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, current = current, prev
	}
	return prev[len(b)]
}
