package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
	"github.com/startfranchise/chat-engine/internal/store"
)

// fakeStore is an in-memory store.Reader for builder tests.
type fakeStore struct {
	brands  []store.Brand
	outlets []store.Outlet
	err     error
}

func (f *fakeStore) ListBrands(_ context.Context) ([]store.Brand, error) {
	return f.brands, f.err
}

func (f *fakeStore) BrandOutlets(_ context.Context, brandID string, limit int) ([]store.Outlet, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	var matched []store.Outlet
	for _, o := range f.outlets {
		if o.BrandID == brandID {
			matched = append(matched, o)
		}
	}
	total := len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (f *fakeStore) OutletsByCity(_ context.Context, city string, limit int) ([]store.Outlet, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	var matched []store.Outlet
	for _, o := range f.outlets {
		if strings.EqualFold(o.City, city) {
			matched = append(matched, o)
		}
	}
	total := len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (f *fakeStore) OutletsWithCoordinates(_ context.Context, _ string) ([]store.Outlet, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matched []store.Outlet
	for _, o := range f.outlets {
		if o.HasCoordinates() {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

func (f *fakeStore) CountOutlets(_ context.Context) (int, error) {
	return len(f.outlets), f.err
}

func (f *fakeStore) DataVersion(_ context.Context) (string, error) {
	return "v-test", f.err
}

func newTestBuilder(fs *fakeStore) *Builder {
	return NewBuilder(fs, observability.Nop())
}

func seedStore() *fakeStore {
	return &fakeStore{
		brands: []store.Brand{
			{ID: "b1", Name: "Kumon", Category: "Pendidikan", Website: "https://kumon.co.id", TotalOutlets: 3},
			{ID: "b2", Name: "Kopi Kenangan", Category: "Minuman", TotalOutlets: 2},
		},
		outlets: []store.Outlet{
			{ID: "o1", Name: "Kumon Kemang", BrandID: "b1", BrandName: "Kumon", City: "Jakarta", Address: "Jl. Kemang Raya 1", TotalScore: 4.8, Latitude: -6.26, Longitude: 106.81},
			{ID: "o2", Name: "Kumon Dago", BrandID: "b1", BrandName: "Kumon", City: "Bandung", Address: "Jl. Dago 10", TotalScore: 4.5, Latitude: -6.88, Longitude: 107.61},
			{ID: "o3", Name: "Kumon Sudirman", BrandID: "b1", BrandName: "Kumon", City: "Jakarta", TotalScore: 4.2},
			{ID: "o4", Name: "Kenangan Thamrin", BrandID: "b2", BrandName: "Kopi Kenangan", City: "Jakarta", TotalScore: 4.6, Latitude: -6.19, Longitude: 106.82},
		},
	}
}

func TestRelevantContext_BrandBranch(t *testing.T) {
	b := newTestBuilder(seedStore())

	rc := b.RelevantContext(context.Background(), "ceritakan tentang Kumon", nil)

	assert.Contains(t, rc.Text, "**Brand: Kumon**")
	assert.Contains(t, rc.Text, "Kategori: Pendidikan")
	assert.Contains(t, rc.Text, "Kumon Kemang")
	assert.Contains(t, rc.Sources, "Brand: Kumon")
}

func TestRelevantContext_CityBranchIncludesTotal(t *testing.T) {
	b := newTestBuilder(seedStore())

	rc := b.RelevantContext(context.Background(), "tempat menarik apa saja di jakarta", nil)

	assert.Contains(t, rc.Text, "**Outlet di Jakarta:**")
	assert.Contains(t, rc.Text, "Total outlet di kota ini: 3")
	assert.Contains(t, rc.Sources, "City: jakarta")
}

func TestRelevantContext_NearestBranchSortsByDistance(t *testing.T) {
	b := newTestBuilder(seedStore())
	monas := &chat.LatLng{Lat: -6.1754, Lng: 106.8272}

	rc := b.RelevantContext(context.Background(), "tempat nongkrong terdekat dari sini", monas)

	require.Contains(t, rc.Text, "Outlet terdekat")
	// Thamrin is closer to Monas than Kemang; Dago is far away in Bandung.
	thamrin := strings.Index(rc.Text, "Kenangan Thamrin")
	kemang := strings.Index(rc.Text, "Kumon Kemang")
	dago := strings.Index(rc.Text, "Kumon Dago")
	require.True(t, thamrin >= 0 && kemang >= 0 && dago >= 0)
	assert.Less(t, thamrin, kemang)
	assert.Less(t, kemang, dago)
}

func TestRelevantContext_StatsFallback(t *testing.T) {
	b := newTestBuilder(seedStore())

	rc := b.RelevantContext(context.Background(), "berapa total data yang kamu punya", nil)

	assert.Contains(t, rc.Text, "Total brand: 2")
	assert.Contains(t, rc.Text, "Total outlet di database: 4")
	assert.Contains(t, rc.Sources, "General stats")
}

func TestRelevantContext_EmptyIntentFallsBackToSummary(t *testing.T) {
	b := newTestBuilder(seedStore())

	rc := b.RelevantContext(context.Background(), "rekomendasikan sesuatu yang menarik dong", nil)

	assert.Contains(t, rc.Text, "Total brand: 2")
}

func TestRelevantContext_StoreErrorDegrades(t *testing.T) {
	b := newTestBuilder(&fakeStore{err: errors.New("store down")})

	rc := b.RelevantContext(context.Background(), "ceritakan tentang Kumon", nil)

	assert.Equal(t, "(Data dari database tidak tersedia saat ini)", rc.Text)
	assert.Empty(t, rc.Sources)
}

func TestGroupByCategory(t *testing.T) {
	groups := GroupByCategory([]store.Brand{
		{Name: "A", Category: "Minuman"},
		{Name: "B", Category: "Pendidikan"},
		{Name: "C", Category: "Minuman"},
		{Name: "D"},
	})

	require.Len(t, groups, 3)
	assert.Equal(t, "Minuman", groups[0].Category)
	assert.Len(t, groups[0].Brands, 2)
	assert.Equal(t, "Pendidikan", groups[1].Category)
	assert.Equal(t, "Umum", groups[2].Category)
}

func TestSuggestedActions_BrandFlow(t *testing.T) {
	b := newTestBuilder(seedStore())

	actions := b.SuggestedActions(context.Background(), "tunjukkan Kumon di peta", nil)

	require.NotEmpty(t, actions)
	assert.Equal(t, ActionSetBrand, actions[0].Type)
	assert.Equal(t, "b1", actions[0].BrandID)

	types := actionTypes(actions)
	assert.Contains(t, types, ActionFocusOutlet)
	assert.Contains(t, types, ActionOpenOutletDetail)
	assert.Contains(t, types, ActionNavigateToOutlet)
	assert.Contains(t, types, ActionFitBounds)
}

func TestSuggestedActions_CityFlow(t *testing.T) {
	b := newTestBuilder(seedStore())

	actions := b.SuggestedActions(context.Background(), "apa saja yang menarik di bandung", nil)

	types := actionTypes(actions)
	assert.Contains(t, types, ActionHighlightCity)
	assert.Contains(t, types, ActionFitBounds)
}

func TestSuggestedActions_ResetFlow(t *testing.T) {
	b := newTestBuilder(seedStore())

	actions := b.SuggestedActions(context.Background(), "hapus filter semuanya", nil)

	require.Len(t, actions, 2)
	assert.Equal(t, ActionClearFilters, actions[0].Type)
	assert.Equal(t, ActionResetView, actions[1].Type)
}

func TestSuggestedActions_UnresolvedBrandBecomesSearch(t *testing.T) {
	b := newTestBuilder(seedStore())

	actions := b.SuggestedActions(context.Background(), "ada info brand Shaburi?", nil)

	require.NotEmpty(t, actions)
	assert.Equal(t, ActionSetSearch, actions[0].Type)
	assert.Equal(t, "Shaburi", actions[0].Value)
}

func TestSuggestedActions_StoreErrorReturnsEmpty(t *testing.T) {
	b := newTestBuilder(&fakeStore{err: errors.New("store down")})

	actions := b.SuggestedActions(context.Background(), "tunjukkan Kumon", nil)
	assert.Empty(t, actions)
}

func actionTypes(actions []Action) []string {
	types := make([]string, 0, len(actions))
	for _, a := range actions {
		types = append(types, a.Type)
	}
	return types
}
