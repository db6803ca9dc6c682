package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cleberrangel/epic-forecast-api/internal/config"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// fakeStore is an in-memory MappingStore.
type fakeStore struct {
	byKey     map[string]model.Category
	bySummary map[string]model.EpicBaselineMapping
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byKey:     make(map[string]model.Category),
		bySummary: make(map[string]model.EpicBaselineMapping),
	}
}

func (s *fakeStore) GetCategoryMapping(epicKey string) (*model.EpicCategoryMapping, error) {
	cat, ok := s.byKey[epicKey]
	if !ok {
		return nil, nil
	}
	return &model.EpicCategoryMapping{EpicKey: epicKey, Category: cat}, nil
}

func (s *fakeStore) UpsertCategoryMapping(epicKey string, category model.Category) error {
	s.byKey[epicKey] = category
	return nil
}

func (s *fakeStore) GetBaselineMapping(epicSummary string) (*model.EpicBaselineMapping, error) {
	m, ok := s.bySummary[epicSummary]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *fakeStore) UpsertBaselineMapping(m model.EpicBaselineMapping) error {
	s.bySummary[m.EpicSummary] = m
	return nil
}

// fixedProvider always answers with the configured result.
type fixedProvider struct {
	result Result
	err    error
	calls  int
}

func (p *fixedProvider) Classify(context.Context, string) (Result, error) {
	p.calls++
	return p.result, p.err
}

func (p *fixedProvider) Name() string { return "fixed" }

func testClassifierOptions() config.ClassifierOptions {
	return config.ClassifierOptions{
		Timeout:         time.Second,
		ConfidenceFloor: 0.6,
	}
}

func newTestClassifier(store MappingStore, provider Provider) *Classifier {
	return New(store, provider, NewTFIDFProvider(nil), testClassifierOptions())
}

func TestClassifyEpicKeyCacheWins(t *testing.T) {
	store := newFakeStore()
	store.byKey["EPIC-1"] = model.CategoryUX
	provider := &fixedProvider{result: Result{Category: model.CategoryBEDev, Confidence: 0.99}}
	c := newTestClassifier(store, provider)

	cls, err := c.Classify(context.Background(), "EPIC-1", "some unrelated text")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Category != model.CategoryUX || cls.Source != SourceEpicKeyCache {
		t.Errorf("got %v from %s, want UX from %s", cls.Category, cls.Source, SourceEpicKeyCache)
	}
	if cls.Confidence != 1.0 {
		t.Errorf("key-cache hits are authoritative, confidence = %v", cls.Confidence)
	}
	if provider.calls != 0 {
		t.Error("provider must not run on a cache hit")
	}
}

func TestClassifySummaryCachePreservesConfidence(t *testing.T) {
	store := newFakeStore()
	store.bySummary["Checkout flow"] = model.EpicBaselineMapping{
		EpicSummary:      "Checkout flow",
		BaselineCategory: model.CategoryFEDev,
		ConfidenceScore:  0.82,
	}
	provider := &fixedProvider{}
	c := newTestClassifier(store, provider)

	cls, err := c.Classify(context.Background(), "", "Checkout flow")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Category != model.CategoryFEDev || cls.Source != SourceSummaryCache {
		t.Errorf("got %v from %s", cls.Category, cls.Source)
	}
	if cls.Confidence != 0.82 {
		t.Errorf("confidence = %v, want the stored 0.82", cls.Confidence)
	}
}

func TestClassifyProviderResultIsPersisted(t *testing.T) {
	store := newFakeStore()
	provider := &fixedProvider{result: Result{Category: model.CategoryBEDev, Confidence: 0.9}}
	c := newTestClassifier(store, provider)

	cls, err := c.Classify(context.Background(), "EPIC-2", "Billing API")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Source != SourceProvider {
		t.Errorf("source = %s, want %s", cls.Source, SourceProvider)
	}
	if store.byKey["EPIC-2"] != model.CategoryBEDev {
		t.Error("provider result must be cached by epic key")
	}
	saved := store.bySummary["Billing API"]
	if saved.BaselineCategory != model.CategoryBEDev || saved.ConfidenceScore != 0.9 {
		t.Errorf("summary cache entry = %+v", saved)
	}
	if saved.CreatedBy != model.MappingCreatedBySystem {
		t.Errorf("created_by = %q, want %q", saved.CreatedBy, model.MappingCreatedBySystem)
	}
}

func TestClassifyBelowFloorNeverGuesses(t *testing.T) {
	store := newFakeStore()
	provider := &fixedProvider{result: Result{Category: model.CategoryDesign, Confidence: 0.59}}
	c := newTestClassifier(store, provider)

	_, err := c.Classify(context.Background(), "EPIC-3", "Could be anything")
	if !errors.Is(err, model.ErrAmbiguousClassification) {
		t.Fatalf("expected ErrAmbiguousClassification, got %v", err)
	}
	if _, ok := store.byKey["EPIC-3"]; ok {
		t.Error("a below-floor result must not be cached")
	}
	if _, ok := store.bySummary["Could be anything"]; ok {
		t.Error("a below-floor result must not be cached by summary")
	}
}

func TestClassifyTimeoutDegradesToAmbiguous(t *testing.T) {
	store := newFakeStore()
	provider := &fixedProvider{err: context.DeadlineExceeded}
	c := newTestClassifier(store, provider)

	_, err := c.Classify(context.Background(), "EPIC-4", "Slow one")
	if !errors.Is(err, model.ErrAmbiguousClassification) {
		t.Errorf("provider timeout should surface as ambiguous, got %v", err)
	}
}

func TestClassifyRejectsEmptyInput(t *testing.T) {
	c := newTestClassifier(newFakeStore(), &fixedProvider{})
	if _, err := c.Classify(context.Background(), "", "   "); err == nil {
		t.Error("expected an error for empty key and summary")
	}
}

func TestOverridePersistsManualMapping(t *testing.T) {
	store := newFakeStore()
	c := newTestClassifier(store, &fixedProvider{})

	if err := c.Override(context.Background(), "EPIC-5", "Legacy importer", model.CategoryBEDev); err != nil {
		t.Fatalf("Override: %v", err)
	}
	if store.byKey["EPIC-5"] != model.CategoryBEDev {
		t.Error("override must update the epic-key cache")
	}
	saved := store.bySummary["Legacy importer"]
	if saved.CreatedBy != model.MappingCreatedByManual || saved.ConfidenceScore != 1.0 {
		t.Errorf("manual mapping = %+v", saved)
	}

	// Subsequent classification answers from the cache, not the provider.
	provider := &fixedProvider{result: Result{Category: model.CategoryUX, Confidence: 0.99}}
	c2 := newTestClassifier(store, provider)
	cls, err := c2.Classify(context.Background(), "EPIC-5", "Legacy importer")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Category != model.CategoryBEDev || provider.calls != 0 {
		t.Error("manual mapping must win over the provider")
	}
}

func TestOverrideWithoutEpicKeySkipsKeyCache(t *testing.T) {
	store := newFakeStore()
	c := newTestClassifier(store, &fixedProvider{})

	if err := c.Override(context.Background(), "", "Prospective epic", model.CategoryDesign); err != nil {
		t.Fatalf("Override: %v", err)
	}
	if len(store.byKey) != 0 {
		t.Error("no epic key, no key-cache entry")
	}
	if store.bySummary["Prospective epic"].BaselineCategory != model.CategoryDesign {
		t.Error("summary mapping missing")
	}
}

func TestOverrideRejectsUnknownCategory(t *testing.T) {
	c := newTestClassifier(newFakeStore(), &fixedProvider{})
	err := c.Override(context.Background(), "EPIC-6", "whatever", model.Category("Totally Made Up"))
	if !errors.Is(err, model.ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestClassifyHealsCorruptedKeyMapping(t *testing.T) {
	store := newFakeStore()
	// A stored category that is a casing variant of a taxonomy entry.
	store.byKey["EPIC-7"] = model.Category("fe dev")
	c := newTestClassifier(store, &fixedProvider{})

	cls, err := c.Classify(context.Background(), "EPIC-7", "react page work")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Category != model.CategoryFEDev {
		t.Errorf("healed category = %v, want %v", cls.Category, model.CategoryFEDev)
	}
	if store.byKey["EPIC-7"] != model.CategoryFEDev {
		t.Error("healed mapping must be written back")
	}
}

func TestClassifyHealsBySimilarityWhenNameIsGone(t *testing.T) {
	store := newFakeStore()
	store.byKey["EPIC-8"] = model.Category("Platform Engineering")
	c := newTestClassifier(store, &fixedProvider{})

	cls, err := c.Classify(context.Background(), "EPIC-8", "api endpoint and database migration")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Category != model.CategoryBEDev {
		t.Errorf("similarity re-point = %v, want %v", cls.Category, model.CategoryBEDev)
	}
}
