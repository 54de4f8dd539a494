package ordering

import "context"

// RestaurantSettings are the operator switches consulted on the webhook path
type RestaurantSettings struct {
	IsOpen     bool `json:"is_open"`
	AutoAccept bool `json:"auto_accept"`
}

// DefaultRestaurantSettings returns an open restaurant with manual acceptance
func DefaultRestaurantSettings() RestaurantSettings {
	return RestaurantSettings{IsOpen: true, AutoAccept: false}
}

// SettingsProvider supplies the current restaurant settings
type SettingsProvider interface {
	Settings(ctx context.Context) RestaurantSettings
}

// SettingsStore is a SettingsProvider that operators can change
type SettingsStore interface {
	SettingsProvider
	SetOpen(ctx context.Context, open bool) RestaurantSettings
	SetAutoAccept(ctx context.Context, autoAccept bool) RestaurantSettings
}
