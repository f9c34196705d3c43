package rag

import (
	"context"

	"github.com/startfranchise/chat-engine/internal/chat"
)

// Action is a UI instruction suggested alongside a reply. The frontend
// interprets the type; unused fields are omitted from the wire form.
type Action struct {
	Type     string  `json:"type"`
	Label    string  `json:"label,omitempty"`
	BrandID  string  `json:"brandId,omitempty"`
	OutletID string  `json:"outletId,omitempty"`
	City     string  `json:"city,omitempty"`
	Value    string  `json:"value,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
}

// Action types understood by the map frontend.
const (
	ActionSetSearch        = "set_search"
	ActionSetCategory      = "set_category"
	ActionSetBrand         = "set_brand"
	ActionClearFilters     = "clear_filters"
	ActionFocusOutlet      = "focus_outlet"
	ActionOpenOutletDetail = "open_outlet_detail"
	ActionNavigateToOutlet = "navigate_to_outlet"
	ActionHighlightCity    = "highlight_city"
	ActionFitBounds        = "fit_bounds"
	ActionResetView        = "reset_view"
)

// SuggestedActions derives map actions from a message independently of the
// generated reply text, so cached replies still get fresh actions. Store
// errors yield an empty slice; actions are an enhancement, never a
// requirement.
func (b *Builder) SuggestedActions(ctx context.Context, message string, location *chat.LatLng) []Action {
	brands, err := b.store.ListBrands(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Action brand fetch failed")
		return nil
	}

	intent := ExtractIntent(message, brands)
	var actions []Action

	if intent.WantsReset {
		return []Action{
			{Type: ActionClearFilters, Label: "Hapus semua filter"},
			{Type: ActionResetView, Label: "Reset tampilan peta"},
		}
	}

	if intent.Brand != nil {
		actions = append(actions, Action{
			Type:    ActionSetBrand,
			Label:   "Tampilkan " + intent.Brand.Name,
			BrandID: intent.Brand.ID,
			Value:   intent.Brand.Name,
		})

		outlets, _, err := b.store.BrandOutlets(ctx, intent.Brand.ID, 1)
		if err == nil && len(outlets) > 0 {
			top := outlets[0]
			actions = append(actions, Action{
				Type:     ActionFocusOutlet,
				Label:    "Fokus ke " + top.Name,
				OutletID: top.ID,
			})
			actions = append(actions, Action{
				Type:     ActionOpenOutletDetail,
				Label:    "Lihat detail outlet",
				OutletID: top.ID,
			})
			if top.HasCoordinates() {
				actions = append(actions, Action{
					Type:     ActionNavigateToOutlet,
					Label:    "Rute ke outlet",
					OutletID: top.ID,
					Lat:      top.Latitude,
					Lng:      top.Longitude,
				})
			}
		}
		actions = append(actions, Action{Type: ActionFitBounds, Label: "Sesuaikan peta"})
	} else if intent.BrandQuery != "" {
		actions = append(actions, Action{
			Type:  ActionSetSearch,
			Label: "Cari " + intent.BrandQuery,
			Value: intent.BrandQuery,
		})
	}

	if intent.Category != "" {
		actions = append(actions, Action{
			Type:  ActionSetCategory,
			Label: "Filter kategori " + intent.Category,
			Value: intent.Category,
		})
	}

	if intent.City != "" {
		actions = append(actions, Action{
			Type:  ActionHighlightCity,
			Label: "Sorot " + titleCase(intent.City),
			City:  intent.City,
		})
		if intent.Brand == nil {
			actions = append(actions, Action{Type: ActionFitBounds, Label: "Sesuaikan peta"})
		}
	}

	return actions
}
