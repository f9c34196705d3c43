package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/observability"
	"github.com/startfranchise/chat-engine/internal/store"
)

// Retrieval limits.
const (
	maxBrandOutlets = 10
	maxCityOutlets  = 10
	maxNearest      = 5
)

// Context is a compact text block of retrieved facts plus the retrieval
// branches that produced it.
type Context struct {
	Text    string
	Sources []string
}

// Builder queries the record store based on extracted intent and renders
// context chunks for prompt injection.
type Builder struct {
	store  store.Reader
	logger *observability.Logger
}

// NewBuilder creates a context builder.
func NewBuilder(reader store.Reader, logger *observability.Logger) *Builder {
	return &Builder{store: reader, logger: logger}
}

// RelevantContext builds the retrieval context for a message. Any store
// error degrades to an empty context; a broken data store must never
// prevent a reply, only impoverish it.
func (b *Builder) RelevantContext(ctx context.Context, message string, location *chat.LatLng) Context {
	var chunks []string
	var sources []string

	brands, err := b.store.ListBrands(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("RAG brand fetch failed, continuing without context")
		return Context{Text: "(Data dari database tidak tersedia saat ini)"}
	}

	intent := ExtractIntent(message, brands)

	if intent.Brand != nil {
		if lines := b.brandChunk(ctx, intent.Brand); len(lines) > 0 {
			chunks = append(chunks, lines...)
			sources = append(sources, "Brand: "+intent.Brand.Name)
		}
	}

	if intent.City != "" {
		if lines := b.cityChunk(ctx, intent.City); len(lines) > 0 {
			chunks = append(chunks, lines...)
			sources = append(sources, "City: "+intent.City)
		}
	}

	if intent.Category != "" {
		if lines := categoryChunk(brands, intent.Category); len(lines) > 0 {
			chunks = append(chunks, lines...)
			sources = append(sources, "Category: "+intent.Category)
		}
	}

	if intent.WantsNearest && location != nil {
		if lines := b.nearestChunk(ctx, intent, *location); len(lines) > 0 {
			chunks = append(chunks, lines...)
			sources = append(sources, "Nearest outlets")
		}
	}

	if intent.WantsStats || len(chunks) == 0 {
		if lines := b.summaryChunk(ctx, brands); len(lines) > 0 {
			chunks = append(chunks, lines...)
			sources = append(sources, "General stats")
		}
	}

	return Context{
		Text:    strings.Join(chunks, "\n"),
		Sources: sources,
	}
}

// brandChunk renders brand metadata plus its highest-rated outlets.
func (b *Builder) brandChunk(ctx context.Context, brand *store.Brand) []string {
	outlets, total, err := b.store.BrandOutlets(ctx, brand.ID, maxBrandOutlets)
	if err != nil {
		b.logger.Warn().Err(err).Str("brand", brand.Name).Msg("Brand outlet fetch failed")
		return nil
	}

	lines := []string{
		fmt.Sprintf("**Brand: %s**", brand.Name),
		fmt.Sprintf("- Kategori: %s", orDefault(brand.Category, "Umum")),
		fmt.Sprintf("- Website: %s", orDefault(brand.Website, "-")),
	}
	if brand.TotalOutlets > 0 {
		lines = append(lines, fmt.Sprintf("- Total outlet: %d", brand.TotalOutlets))
	} else {
		lines = append(lines, fmt.Sprintf("- Total outlet: %d", total))
	}
	lines = append(lines, fmt.Sprintf("- Outlet terdaftar di database: %d", total))

	if len(outlets) > 0 {
		lines = append(lines, fmt.Sprintf("\nBeberapa outlet %s:", brand.Name))
		for _, o := range outlets {
			lines = append(lines, "  - "+outletLine(o))
		}
	}
	return lines
}

// cityChunk renders the top outlets in a city and the city's total count.
func (b *Builder) cityChunk(ctx context.Context, city string) []string {
	outlets, total, err := b.store.OutletsByCity(ctx, city, maxCityOutlets)
	if err != nil {
		b.logger.Warn().Err(err).Str("city", city).Msg("City outlet fetch failed")
		return nil
	}
	if len(outlets) == 0 {
		return nil
	}

	lines := []string{fmt.Sprintf("\n**Outlet di %s:**", titleCase(city))}
	for _, o := range outlets {
		brandName := orDefault(o.BrandName, "Unknown")
		addr := orDefault(o.Address, o.City)
		score := ""
		if o.TotalScore > 0 {
			score = fmt.Sprintf(" (Rating: %.1f/5)", o.TotalScore)
		}
		lines = append(lines, fmt.Sprintf("  - %s (%s), %s%s", o.Name, brandName, addr, score))
	}
	lines = append(lines, fmt.Sprintf("Total outlet di kota ini: %d", total))
	return lines
}

// categoryChunk filters the brand list by category.
func categoryChunk(brands []store.Brand, category string) []string {
	var matched []store.Brand
	for _, b := range brands {
		if strings.Contains(strings.ToLower(b.Category), category) {
			matched = append(matched, b)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	lines := []string{fmt.Sprintf("\n**Brand kategori %q:**", category)}
	for _, b := range matched {
		lines = append(lines, fmt.Sprintf("  - %s (%s outlet)", b.Name, countOrUnknown(b.TotalOutlets)))
	}
	return lines
}

// nearestChunk sorts coordinate-carrying outlets by great-circle distance
// from the user and renders the closest few.
func (b *Builder) nearestChunk(ctx context.Context, intent Intent, location chat.LatLng) []string {
	filter := ""
	if intent.Brand != nil {
		filter = fmt.Sprintf("brand = %q", intent.Brand.ID)
	} else if intent.City != "" {
		filter = fmt.Sprintf("city ~ %q", intent.City)
	}

	outlets, err := b.store.OutletsWithCoordinates(ctx, filter)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Nearest outlet fetch failed")
		return nil
	}

	type scored struct {
		outlet   store.Outlet
		distance float64
	}
	var ranked []scored
	for _, o := range outlets {
		if !o.HasCoordinates() {
			continue
		}
		ranked = append(ranked, scored{
			outlet:   o,
			distance: Haversine(location.Lat, location.Lng, o.Latitude, o.Longitude),
		})
	}
	if len(ranked) == 0 {
		return nil
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].distance < ranked[j].distance })
	if len(ranked) > maxNearest {
		ranked = ranked[:maxNearest]
	}

	lines := []string{"\n**Outlet terdekat dari lokasi kamu:**"}
	for _, r := range ranked {
		lines = append(lines, fmt.Sprintf("  - %s, %s (%.1f km)", r.outlet.Name, orDefault(r.outlet.City, r.outlet.Address), r.distance))
	}
	return lines
}

// summaryChunk renders the full-database summary with a brand listing
// grouped by category.
func (b *Builder) summaryChunk(ctx context.Context, brands []store.Brand) []string {
	totalOutlets, err := b.store.CountOutlets(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Outlet count fetch failed")
		totalOutlets = 0
	}

	lines := []string{
		"\n**Statistik Brand Map Indonesia:**",
		fmt.Sprintf("- Total brand: %d", len(brands)),
		fmt.Sprintf("- Total outlet di database: %d", totalOutlets),
		"\nDaftar brand:",
	}
	for _, grp := range GroupByCategory(brands) {
		for _, b := range grp.Brands {
			lines = append(lines, fmt.Sprintf("  - %s (%s, %s outlet)", b.Name, grp.Category, countOrUnknown(b.TotalOutlets)))
		}
	}
	return lines
}

// CategoryGroup is a brand listing bucket.
type CategoryGroup struct {
	Category string
	Brands   []store.Brand
}

// GroupByCategory buckets brands by category, categories sorted
// alphabetically, brands keeping their store order.
func GroupByCategory(brands []store.Brand) []CategoryGroup {
	buckets := make(map[string][]store.Brand)
	for _, b := range brands {
		cat := orDefault(strings.TrimSpace(b.Category), "Umum")
		buckets[cat] = append(buckets[cat], b)
	}

	categories := make([]string, 0, len(buckets))
	for cat := range buckets {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	groups := make([]CategoryGroup, 0, len(categories))
	for _, cat := range categories {
		groups = append(groups, CategoryGroup{Category: cat, Brands: buckets[cat]})
	}
	return groups
}

func outletLine(o store.Outlet) string {
	line := o.Name
	if o.City != "" {
		line += ", " + o.City
	}
	if o.Region != "" {
		line += ", " + o.Region
	}
	if o.TotalScore > 0 {
		line += fmt.Sprintf(" (Rating: %.1f/5)", o.TotalScore)
	}
	return line
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func countOrUnknown(n int) string {
	if n <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", n)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
