package delivery

import "github.com/uniorder/backend/internal/domain/integration"

// Adapters is the fixed set of partner adapters
type Adapters struct {
	byPartner map[integration.PartnerCode]integration.PartnerAdapter
}

// NewAdapters returns the adapters for every supported partner
func NewAdapters() *Adapters {
	return NewAdaptersFrom(NewJahezAdapter(), NewHungerStationAdapter(), NewKeetaAdapter())
}

// NewAdaptersFrom builds a registry from explicit adapters
func NewAdaptersFrom(adapters ...integration.PartnerAdapter) *Adapters {
	m := make(map[integration.PartnerCode]integration.PartnerAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Partner()] = a
	}
	return &Adapters{byPartner: m}
}

// Adapter returns the adapter for a partner
func (a *Adapters) Adapter(partner integration.PartnerCode) (integration.PartnerAdapter, bool) {
	adapter, ok := a.byPartner[partner]
	return adapter, ok
}

// DefaultBaseURL returns the production API URL for a partner
func DefaultBaseURL(partner integration.PartnerCode) string {
	switch partner {
	case integration.PartnerJahez:
		return JahezProductionAPIURL
	case integration.PartnerHungerStation:
		return HungerStationProductionAPIURL
	case integration.PartnerKeeta:
		return KeetaProductionAPIURL
	default:
		return ""
	}
}

var _ integration.AdapterRegistry = (*Adapters)(nil)
