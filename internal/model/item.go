package model

import "strings"

// ServiceProperties holds the feature service settings read from the
// service's admin endpoint.
type ServiceProperties struct {
	Capabilities string `json:"capabilities"`
	CacheMaxAge  int    `json:"cache_max_age"`
}

// HasCapability reports whether the comma separated capability list
// mentions name.
func (p ServiceProperties) HasCapability(name string) bool {
	return strings.Contains(p.Capabilities, name)
}

// LayerState captures one layer under a feature service.
type LayerState struct {
	URL string `json:"url"`
	// DefaultVisibility is nil when the layer's properties could not be read.
	DefaultVisibility *bool `json:"default_visibility,omitempty"`
}

// ItemState is a read-only snapshot of one item taken before it is checked.
// Every check for an item reads the same snapshot.
type ItemState struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Type         string   `json:"type"`
	Tags         []string `json:"tags"`
	SharedGroups []string `json:"shared_groups"`
	// GroupsErr is set when the platform could not report the item's groups.
	GroupsErr     error              `json:"-"`
	Protected     bool               `json:"protected"`
	Description   string             `json:"description"`
	Metadata      string             `json:"-"`
	ContentStatus string             `json:"content_status"`
	Layers        []LayerState       `json:"layers"`
	Properties    *ServiceProperties `json:"properties,omitempty"`
	OwnerFolder   string             `json:"owner_folder"`
}

// ItemSummary is the minimal view of an item used by organization-wide checks.
type ItemSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
