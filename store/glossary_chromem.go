// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// TextEmbedder turns text into a vector. It's the seam between Glossary's
// semantic search and whichever embedding provider is configured
// (llmclient wraps the same concern for the LLM side).
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// chunkSize bounds the text handed to the embedder per call. Glossary query
// text may be arbitrarily long (spec.md §4.B); chromem's collections store
// one vector per document, so a long query is split into consecutive,
// non-overlapping chunks and the chunk scores are combined by max, which approximates "does
// any part of this query relate to the term" well enough for ranking.
const chunkSize = 2000

// ChromemGlossary implements Glossary with an embedded chromem-go vector
// collection per agent, grounded on the teacher's pkg/vector.ChromemProvider.
// Being in-process keeps it compatible with the "single process owns each
// session" non-goal constraint on distributed clustering.
type ChromemGlossary struct {
	db       *chromem.DB
	embedder TextEmbedder

	mu          sync.Mutex
	collections map[string]*chromem.Collection
	termsByID   map[string]Term
}

// NewChromemGlossary creates an empty in-memory glossary index.
func NewChromemGlossary(embedder TextEmbedder) *ChromemGlossary {
	return &ChromemGlossary{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
		termsByID:   make(map[string]Term),
	}
}

func (g *ChromemGlossary) collection(agentID string) (*chromem.Collection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if col, ok := g.collections[agentID]; ok {
		return col, nil
	}
	col, err := g.db.GetOrCreateCollection(agentID, nil, func(ctx context.Context, text string) ([]float32, error) {
		return g.embedder.Embed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("glossary: create collection %q: %w", agentID, err)
	}
	g.collections[agentID] = col
	return col, nil
}

// IndexTerm adds or updates a glossary entry in the agent's collection. It's
// exposed for test/bootstrap seeding; authoring-time indexing proper is out
// of the core's scope (spec.md §1).
func (g *ChromemGlossary) IndexTerm(ctx context.Context, term Term) error {
	col, err := g.collection(term.Set)
	if err != nil {
		return err
	}

	content := term.Name + ": " + term.Description
	if len(term.Synonyms) > 0 {
		content += " (aka " + strings.Join(term.Synonyms, ", ") + ")"
	}

	doc := chromem.Document{
		ID:      term.ID,
		Content: content,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("glossary: index term %q: %w", term.ID, err)
	}

	g.mu.Lock()
	g.termsByID[term.ID] = term
	g.mu.Unlock()
	return nil
}

// RelevantTerms implements store.Glossary.
func (g *ChromemGlossary) RelevantTerms(ctx context.Context, agentID, queryText string, topK int) ([]Term, error) {
	col, err := g.collection(agentID)
	if err != nil {
		return nil, err
	}
	if col.Count() == 0 {
		return nil, nil
	}

	n := topK
	if n > col.Count() {
		n = col.Count()
	}
	if n <= 0 {
		return nil, nil
	}

	best := make(map[string]float32)
	for _, chunk := range chunkText(queryText, chunkSize) {
		results, err := col.Query(ctx, chunk, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("glossary: query: %w", err)
		}
		for _, r := range results {
			if cur, ok := best[r.ID]; !ok || r.Similarity > cur {
				best[r.ID] = r.Similarity
			}
		}
	}

	type scored struct {
		term  Term
		score float32
	}
	g.mu.Lock()
	ranked := make([]scored, 0, len(best))
	for id, score := range best {
		if term, ok := g.termsByID[id]; ok {
			ranked = append(ranked, scored{term, score})
		}
	}
	g.mu.Unlock()

	// simple insertion sort: topK is small and this runs once per request
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]Term, len(ranked))
	for i, s := range ranked {
		out[i] = s.term
	}
	return out, nil
}

func chunkText(s string, size int) []string {
	if len(s) <= size {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		if len(s) <= size {
			chunks = append(chunks, s)
			break
		}
		cut := strings.LastIndexByte(s[:size], ' ')
		if cut <= 0 {
			cut = size
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	return chunks
}
