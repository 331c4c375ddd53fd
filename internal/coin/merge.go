package coin

import "go.uber.org/zap"

// CarryForward copies the slow-changing allow-listed fields from the prior
// snapshot entry onto a freshly collected record. A prior value is carried
// only when present, and once carried it wins over the fresh value — these
// fields are resolved by expensive page visits, so a known-good value is
// never clobbered by a re-collection that starts from null.
func CarryForward(fresh, prior *Record) {
	if prior == nil {
		return
	}

	if prior.Name != "" {
		fresh.Name = prior.Name
	}
	if prior.ExternalID != "" {
		fresh.ExternalID = prior.ExternalID
	}
	if prior.SocialHandle != nil && *prior.SocialHandle != "" {
		fresh.SocialHandle = prior.SocialHandle
	}
	if prior.SocialURL != nil && *prior.SocialURL != "" {
		fresh.SocialURL = prior.SocialURL
	}
	if prior.RepoURL != nil && *prior.RepoURL != "" {
		fresh.RepoURL = prior.RepoURL
	}
	if prior.LogoSourceURL != nil && *prior.LogoSourceURL != "" {
		fresh.LogoSourceURL = prior.LogoSourceURL
	}
	if prior.LogoLocalPath != nil && *prior.LogoLocalPath != "" {
		fresh.LogoLocalPath = prior.LogoLocalPath
	}

	zap.L().Debug("carried forward prior fields", zap.String("name", fresh.Name))
}

// PriceUpdate carries one reconciliation cycle's market fields. A nil field
// means the API omitted that sub-field for the coin.
type PriceUpdate struct {
	Price     *float64
	MarketCap *float64
	Change24h *float64
	Volume24h *float64
}

// ApplyPriceUpdate merges fresh market data into the record field by field.
// Each sub-field the API omitted independently keeps its previous value
// rather than resetting to zero.
func ApplyPriceUpdate(r *Record, u PriceUpdate, now string) {
	if u.Price != nil {
		r.Price = *u.Price
	}
	if u.MarketCap != nil {
		r.MarketCap = *u.MarketCap
	}
	if u.Change24h != nil {
		r.PriceChange24h = u.Change24h
	}
	if u.Volume24h != nil {
		r.Volume24h = u.Volume24h
	}
	r.LastUpdated = String(now)
}
