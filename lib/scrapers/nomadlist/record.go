package nomadlist

import "time"

// Fact is a single named datum scraped from a key-value tab.
type Fact struct {
	Value       string
	Description string
	Url         string
}

// MonthlyFact is one cell of the climate matrix.
type MonthlyFact struct {
	// 1 through 12
	Month       int
	Value       string
	Description string
}

type Review struct {
	Description string
	PublishedAt time.Time
}

// TabData holds whatever one tab produced. Exactly one field group is
// populated, depending on the tab kind.
type TabData struct {
	// key-value tabs (Scores, DigitalNomadGuide, CostOfLiving)
	Facts map[string]Fact
	// Weather: fact kind -> 12 monthly cells
	Monthly map[string][]MonthlyFact

	Reviews []Review
	Photos  []string
	Pros    []string
	Cons    []string
	// Near/Next/Similar grids
	RelatedCities []string
}

// CityRecord is the immutable result of scraping one detail page. It
// deals purely in names; persisted ids are the store's business.
type CityRecord struct {
	City      string
	Country   string
	Continent string
	Rank      int64
	// keyed by normalized tab name
	Tabs map[string]TabData
	// additive enrichment from the metadata lookup service; never
	// overrides anything scraped off the page
	Meta map[string]string
}
