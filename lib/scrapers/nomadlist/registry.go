package nomadlist

import (
	"nomadscout/lib/htmlutil"
	"nomadscout/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

type extractFunc func(sel *goquery.Selection) (TabData, error)

type tabSpec struct {
	// locates the tab's content panel within the detail page
	selector string
	extract  extractFunc
}

// tabRegistry is the full set of detail-page tabs this scraper knows how
// to read. Dispatch is a plain table lookup keyed by the normalized tab
// label; anything the site adds later simply fails IsRecognized and gets
// skipped.
var tabRegistry = map[string]tabSpec{
	"Scores":            {selector: "div.tab.tab-ranking", extract: extractKeyValueTab},
	"DigitalNomadGuide": {selector: "div.tab.tab-digital-nomad-guide", extract: extractKeyValueTab},
	"CostOfLiving":      {selector: "div.tab.tab-cost-of-living", extract: extractKeyValueTab},
	"Weather":           {selector: "div.tab.tab-weather", extract: extractWeatherTab},
	"Reviews":           {selector: "div.tab.tab-reviews", extract: extractReviewsTab},
	"Photos":            {selector: "div.tab.tab-photos", extract: extractPhotosTab},
	"ProsAndCons":       {selector: "div.tab.tab-pros-cons", extract: extractProsConsTab},
	"Near":              {selector: "div.tab.tab-near", extract: extractRelatedTab},
	"Next":              {selector: "div.tab.tab-next", extract: extractRelatedTab},
	"Similar":           {selector: "div.tab.tab-similar", extract: extractRelatedTab},
}

// relationKinds maps tab names to the relationship type their grids
// describe.
var relationKinds = map[string]string{
	"Near":    "near",
	"Next":    "next",
	"Similar": "similar",
}

// TabName derives the registry key from a tab header element.
func TabName(tab *goquery.Selection) string {
	label := tab.Find("span.label")
	if label.Length() > 0 {
		return textutil.NormalizeTabName(htmlutil.Text(label))
	}
	return textutil.NormalizeTabName(htmlutil.Text(tab))
}

// RelationKind maps a related-cities tab name to the typed edge its grid
// describes.
func RelationKind(tabName string) (string, bool) {
	kind, ok := relationKinds[tabName]
	return kind, ok
}

func IsRecognized(name string) bool {
	_, ok := tabRegistry[name]
	return ok
}

// RecognizedTabs lists the registry keys, mostly for logging and tests.
func RecognizedTabs() []string {
	names := make([]string, 0, len(tabRegistry))
	for name := range tabRegistry {
		names = append(names, name)
	}
	return names
}
