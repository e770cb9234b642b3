// ABOUTME: Catalog of third-party providers a user can connect
// ABOUTME: Google providers use OAuth2; the rest are connection toggles

package integrations

import (
	"slices"
)

// Provider identifiers as stored in integration records.
const (
	ProviderGmail    = "gmail"
	ProviderCalendar = "google_calendar"
	ProviderSpotify  = "spotify"
	ProviderWhatsApp = "whatsapp"
	ProviderSlack    = "slack"
	ProviderTodoList = "todoList"
)

// Provider describes one connectable service.
type Provider struct {
	ID     string
	Name   string
	Scopes []string // empty for toggle-only providers
}

// OAuth reports whether connecting goes through a Google consent screen.
func (p Provider) OAuth() bool {
	return len(p.Scopes) > 0
}

var providers = []Provider{
	{
		ID:   ProviderGmail,
		Name: "Gmail",
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.send",
			"https://www.googleapis.com/auth/gmail.modify",
		},
	},
	{
		ID:   ProviderCalendar,
		Name: "Google Calendar",
		Scopes: []string{
			"https://www.googleapis.com/auth/calendar.readonly",
			"https://www.googleapis.com/auth/calendar.events",
		},
	},
	{ID: ProviderSpotify, Name: "Spotify"},
	{ID: ProviderWhatsApp, Name: "WhatsApp"},
	{ID: ProviderSlack, Name: "Slack"},
	{ID: ProviderTodoList, Name: "Todo List"},
}

// Providers returns the catalog in display order.
func Providers() []Provider {
	return slices.Clone(providers)
}

// Lookup finds a provider by ID.
func Lookup(id string) (Provider, bool) {
	for _, p := range providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}
