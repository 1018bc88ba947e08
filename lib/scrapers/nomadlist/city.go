package nomadlist

import (
	"context"
	"log/slog"

	"nomadscout/lib/htmlutil"

	"dario.cat/mergo"
	"github.com/PuerkitoBio/goquery"
)

// ExtractCityDetails turns one detail page into a CityRecord. It returns
// nil when the page is not a usable detail page; one malformed page must
// never take the batch down, so every structural problem is logged and
// swallowed here.
func ExtractCityDetails(ctx context.Context, doc *goquery.Document) *CityRecord {
	identity := doc.Find("div.text").First()
	if identity.Length() == 0 {
		return nil
	}
	city := htmlutil.Text(identity.Find("h1"))
	country := htmlutil.Text(identity.Find("h2"))
	if city == "" {
		return nil
	}

	rank, err := scoresRank(doc)
	if err != nil {
		// rank orders everything downstream, a record without one is useless
		slog.WarnContext(ctx, "dropping city record", "city", city, "country", country, "err", err)
		return nil
	}

	record := &CityRecord{
		City:    city,
		Country: country,
		Rank:    rank,
		Tabs:    map[string]TabData{},
		Meta:    map[string]string{},
	}

	doc.Find("div.tabs div.ul h2.li").Each(func(_ int, tab *goquery.Selection) {
		name := TabName(tab)
		spec, ok := tabRegistry[name]
		if !ok {
			slog.DebugContext(ctx, "skipping unrecognized tab", "city", city, "tab", name)
			return
		}

		content := doc.Find(spec.selector).First()
		if content.Length() == 0 {
			return
		}
		data, err := spec.extract(content)
		if err != nil {
			slog.WarnContext(ctx, "failed to extract tab", "city", city, "tab", name, "err", err)
			return
		}
		record.Tabs[name] = data
	})

	if guide, ok := record.Tabs["DigitalNomadGuide"]; ok {
		record.Continent = guideContinent(guide.Facts)
	}

	return record
}

// reserved keys the enrichment service may echo back; page data always
// wins for these
var reservedMetaKeys = []string{"city", "country", "continent", "rank"}

// applyEnrichment merges looked-up metadata into the record. City-level
// data is merged first so it takes priority over country-level data;
// existing keys are never overwritten.
func applyEnrichment(record *CityRecord, cityMeta, countryMeta map[string]string) {
	if record.Meta == nil {
		record.Meta = map[string]string{}
	}
	// merge errors only occur for mismatched types, impossible here
	_ = mergo.Merge(&record.Meta, cityMeta)
	_ = mergo.Merge(&record.Meta, countryMeta)

	for _, key := range reservedMetaKeys {
		delete(record.Meta, key)
	}
}
