// Package lexical provides an in-memory BM25 index over the ingested corpus.
// It complements the semantic store with exact term matching so that rare
// identifiers and proper nouns still rank well.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/doku-labs/dokuchat/internal/domain"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

type indexedDoc struct {
	id       string
	document domain.Document
	terms    map[string]int
	length   int
	order    int
}

// Index is a BM25 index. Documents are scored with the standard Okapi
// formula; ties are broken by insertion order so repeated searches over the
// same corpus are deterministic.
type Index struct {
	mu        sync.RWMutex
	docs      []indexedDoc
	docFreq   map[string]int
	totalLen  int
	byID      map[string]int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		docFreq: make(map[string]int),
		byID:    make(map[string]int),
	}
}

// Add indexes doc under id. Adding an existing id replaces the previous
// document but keeps its original insertion position.
func (idx *Index) Add(id string, doc domain.Document) {
	terms := termFrequencies(doc.Content)
	length := 0
	for _, n := range terms {
		length += n
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if pos, ok := idx.byID[id]; ok {
		old := idx.docs[pos]
		for term := range old.terms {
			idx.docFreq[term]--
			if idx.docFreq[term] == 0 {
				delete(idx.docFreq, term)
			}
		}
		idx.totalLen -= old.length

		idx.docs[pos] = indexedDoc{id: id, document: doc, terms: terms, length: length, order: old.order}
	} else {
		idx.byID[id] = len(idx.docs)
		idx.docs = append(idx.docs, indexedDoc{id: id, document: doc, terms: terms, length: length, order: len(idx.docs)})
	}

	for term := range terms {
		idx.docFreq[term]++
	}
	idx.totalLen += length
}

// Len reports the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Search returns up to k documents scored against query, best first.
// Documents that share no term with the query are omitted.
func (idx *Index) Search(query string, k int) []domain.RetrievalResult {
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || k <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(idx.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	type scored struct {
		doc   *indexedDoc
		score float64
	}
	var hits []scored

	for i := range idx.docs {
		d := &idx.docs[i]
		score := 0.0
		for _, term := range queryTerms {
			tf := d.terms[term]
			if tf == 0 {
				continue
			}
			df := idx.docFreq[term]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			norm := float64(tf) * (bm25K1 + 1) /
				(float64(tf) + bm25K1*(1-bm25B+bm25B*float64(d.length)/avgLen))
			score += idf * norm
		}
		if score > 0 {
			hits = append(hits, scored{doc: d, score: score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].doc.order < hits[b].doc.order
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]domain.RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = domain.RetrievalResult{
			ID:       h.doc.id,
			Document: h.doc.document,
			Score:    h.score,
		}
	}
	return results
}

func termFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, term := range tokenize(text) {
		freq[term]++
	}
	return freq
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
