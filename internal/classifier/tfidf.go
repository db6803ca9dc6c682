package classifier

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// seedExemplars are the keyword corpora each taxonomy category starts
// with. Accepted historical mappings extend them at runtime.
var seedExemplars = map[model.Category]string{
	model.CategoryProjectOversight: "project management oversight coordination planning status reporting stakeholder meetings budget tracking roadmap milestones governance risk",
	model.CategoryUX:               "ux user experience research usability testing interviews personas journey wireframe prototype accessibility flows information architecture",
	model.CategoryDesign:           "design visual mockup branding style guide theme colors typography illustration assets logo layout graphic",
	model.CategoryFEDev:            "frontend front end fe development react component page form ui implementation javascript typescript css responsive browser integration widget",
	model.CategoryBEDev:            "backend back end be development api endpoint database integration service migration queue worker authentication server data model sync",
}

type sparseVec = map[int]float64

// TFIDFProvider classifies by cosine similarity between the summary and
// per-category exemplar documents. Deterministic and network-free; the
// default provider and the test substitute for the LLM providers.
type TFIDFProvider struct {
	mu        sync.RWMutex
	exemplars map[model.Category][]string

	vocab   map[string]int
	idf     []float64
	catVecs map[model.Category]sparseVec
}

// NewTFIDFProvider builds a provider from the seed corpora plus any
// accepted historical mappings.
func NewTFIDFProvider(learned []model.EpicBaselineMapping) *TFIDFProvider {
	p := &TFIDFProvider{exemplars: make(map[model.Category][]string)}
	for cat, doc := range seedExemplars {
		p.exemplars[cat] = []string{doc}
	}
	for _, m := range learned {
		if m.BaselineCategory.Valid() {
			p.exemplars[m.BaselineCategory] = append(p.exemplars[m.BaselineCategory], m.EpicSummary)
		}
	}
	p.rebuild()
	return p
}

// Name implements Provider.
func (p *TFIDFProvider) Name() string { return "tfidf" }

// AddExample extends a category's exemplar corpus with an accepted
// summary and rebuilds the index.
func (p *TFIDFProvider) AddExample(cat model.Category, summary string) {
	if !cat.Valid() || strings.TrimSpace(summary) == "" {
		return
	}
	p.mu.Lock()
	p.exemplars[cat] = append(p.exemplars[cat], summary)
	p.mu.Unlock()
	p.rebuild()
}

// Classify scores the summary against each category document. The
// confidence is the best cosine score's share of the total, so a summary
// matching several categories equally comes back low-confidence.
func (p *TFIDFProvider) Classify(ctx context.Context, summary string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	query := p.queryVec(summary)
	scores := make(map[model.Category]float64, len(p.catVecs))

	var best model.Category
	var bestScore, total float64
	for _, cat := range model.Categories() {
		score := cosine(query, p.catVecs[cat])
		scores[cat] = score
		total += score
		if score > bestScore {
			bestScore = score
			best = cat
		}
	}

	if total == 0 {
		return Result{Scores: scores}, nil
	}

	return Result{
		Category:   best,
		Confidence: bestScore / total,
		Scores:     scores,
	}, nil
}

// rebuild recomputes the vocabulary, IDF weights and category vectors.
func (p *TFIDFProvider) rebuild() {
	p.mu.Lock()
	defer p.mu.Unlock()

	// One document per category: its exemplars concatenated.
	docs := make(map[model.Category]string, len(p.exemplars))
	for cat, texts := range p.exemplars {
		docs[cat] = strings.Join(texts, " ")
	}

	vocab := make(map[string]int)
	for _, cat := range model.Categories() {
		for _, tok := range tokenize(docs[cat]) {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
		}
	}

	df := make([]int, len(vocab))
	rawVecs := make(map[model.Category]sparseVec, len(docs))
	n := float64(len(model.Categories()))

	for _, cat := range model.Categories() {
		tf := make(map[int]int)
		for _, tok := range tokenize(docs[cat]) {
			tf[vocab[tok]]++
		}
		vec := make(sparseVec, len(tf))
		for idx, count := range tf {
			vec[idx] = float64(count)
			df[idx]++
		}
		rawVecs[cat] = vec
	}

	idf := make([]float64, len(vocab))
	for i, d := range df {
		if d > 0 {
			idf[i] = math.Log(n/float64(d)) + 1.0
		}
	}

	for _, vec := range rawVecs {
		for idx := range vec {
			vec[idx] *= idf[idx]
		}
	}

	p.vocab = vocab
	p.idf = idf
	p.catVecs = rawVecs
}

func (p *TFIDFProvider) queryVec(query string) sparseVec {
	tf := make(map[int]int)
	for _, tok := range tokenize(query) {
		if i, ok := p.vocab[tok]; ok {
			tf[i]++
		}
	}
	vec := make(sparseVec, len(tf))
	for i, count := range tf {
		vec[i] = float64(count) * p.idf[i]
	}
	return vec
}

func cosine(a, b sparseVec) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// Iterate the smaller vector.
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for i, av := range a {
		if bv, ok := b[i]; ok {
			dot += av * bv
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (norm(a) * norm(b))
}

func norm(v sparseVec) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	var tokens []string
	var cur strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
