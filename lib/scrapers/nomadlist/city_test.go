package nomadlist

import (
	"context"
	"strings"
	"testing"
	"time"

	"nomadscout/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const lisbonPage = `<html><body>
<div class="text">
	<h1>Lisbon</h1>
	<h2>Portugal</h2>
</div>
<div class="tabs"><div class="ul">
	<h2 class="li"><span class="label">Scores</span></h2>
	<h2 class="li"><span class="label">Digital Nomad Guide</span></h2>
	<h2 class="li"><span class="label">Cost of Living</span></h2>
	<h2 class="li"><span class="label">Weather</span></h2>
	<h2 class="li"><span class="label">Reviews</span></h2>
	<h2 class="li"><span class="label">Photos</span></h2>
	<h2 class="li"><span class="label">Pros and Cons</span></h2>
	<h2 class="li"><span class="label">Near</span></h2>
	<h2 class="li"><span class="label">Chat</span></h2>
</div></div>
<div class="tab tab-ranking">
	<table class="details">
		<tr>
			<td class="key">📊 Overall</td>
			<td class="value"><div class="bar"><div class="filling" style="width: 80%"></div></div>Great (Rank #7)</td>
		</tr>
		<tr>
			<td class="key">Safety</td>
			<td class="value"><div class="bar"><div class="filling" style="width: 55%"></div></div>Okay</td>
		</tr>
	</table>
</div>
<div class="tab tab-digital-nomad-guide">
	<table class="details">
		<tr><td class="key">🌍 Continent</td><td class="value">Europe</td></tr>
		<tr><td class="key">Internet</td><td class="value"><span class="value">52 Mbps</span> <span class="desc">(fast)</span></td></tr>
		<tr><td class="key"></td><td class="value">no key, skipped</td></tr>
	</table>
</div>
<div class="tab tab-cost-of-living">
	<table class="details">
		<tr><td class="key">Nomad Cost</td><td class="value"><a href="https://example.com/cost">$2,014 / mo</a></td></tr>
	</table>
</div>
<div class="tab tab-weather">
	<table class="climate">
		<tr><td class="key"></td><td class="value">Jan</td><td class="value">Feb</td><td class="value">Mar</td></tr>
		<tr>
			<td class="key">🌡 Feels</td>
			<td class="value"><span class="metric">12°C</span> <span class="desc">(cold)</span></td>
			<td class="value"><span class="metric">14°C</span> <span class="desc">(mild)</span></td>
			<td class="value"><span class="metric">17°C</span> <span class="desc">(good)</span></td>
		</tr>
		<tr>
			<td class="key">Humidity</td>
			<td class="value">77%bad</td>
			<td class="value">70%ok</td>
			<td class="value">65%good</td>
		</tr>
	</table>
</div>
<div class="tab tab-reviews">
	<div class="review" data-datetime="2021-07-01"><p>Great city for remote work.</p></div>
	<div class="review" data-datetime="2021-08-15T10:30:00Z"><p>Getting crowded lately.</p></div>
	<div class="review" data-datetime="someday"><p>Never parses, dropped.</p></div>
</div>
<div class="tab tab-photos">
	<img src="https://example.com/a.jpg">
	<img src="https://example.com/b.jpg">
	<img>
</div>
<div class="tab tab-pros-cons">
	<div class="pros"><p>Warm all year</p><p>Fast internet</p></div>
	<div class="cons"><p>Crowded in summer</p></div>
</div>
<div class="tab tab-near">
	<ul>
		<li><a href="/porto"><h3>Porto</h3></a></li>
		<li><a href="/faro"><h3>Faro</h3></a></li>
	</ul>
</div>
</body></html>`

func parsePage(t *testing.T, page string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestExtractCityDetails(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/nomadlist")
	defer cleanup()

	record := ExtractCityDetails(context.Background(), parsePage(t, lisbonPage))
	require.NotNil(t, record)

	require.Equal(t, "Lisbon", record.City)
	require.Equal(t, "Portugal", record.Country)
	require.Equal(t, "Europe", record.Continent)
	require.Equal(t, int64(7), record.Rank)

	// the Chat tab is not in the registry and must not show up
	require.Len(t, record.Tabs, 8)
	require.NotContains(t, record.Tabs, "Chat")

	scores := record.Tabs["Scores"].Facts
	require.Equal(t, Fact{Value: "0.80", Description: "Great (Rank #7)"}, scores["Overall"])
	require.Equal(t, Fact{Value: "0.55", Description: "Okay"}, scores["Safety"])

	guide := record.Tabs["DigitalNomadGuide"].Facts
	require.Len(t, guide, 2)
	require.Equal(t, Fact{Value: "Europe"}, guide["Continent"])
	require.Equal(t, "52 Mbps", guide["Internet"].Value)
	require.Equal(t, "(fast)", guide["Internet"].Description)

	cost := record.Tabs["CostOfLiving"].Facts
	require.Equal(t, Fact{Value: "$2,014 / mo", Url: "https://example.com/cost"}, cost["Nomad Cost"])

	weather := record.Tabs["Weather"].Monthly
	require.Len(t, weather, 2)
	require.Equal(t,
		MonthlyFact{Month: 1, Value: "12°C", Description: "(cold)"},
		weather["Feels"][0])
	require.Equal(t,
		MonthlyFact{Month: 3, Value: "17°C", Description: "(good)"},
		weather["Feels"][2])
	require.Equal(t,
		MonthlyFact{Month: 1, Value: "77%", Description: "bad"},
		weather["Humidity"][0])

	reviews := record.Tabs["Reviews"].Reviews
	require.Len(t, reviews, 2)
	require.Equal(t, "Great city for remote work.", reviews[0].Description)
	require.Equal(t, time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC), reviews[0].PublishedAt)

	require.Equal(t,
		[]string{"https://example.com/a.jpg", "https://example.com/b.jpg"},
		record.Tabs["Photos"].Photos)

	require.Equal(t, []string{"Warm all year", "Fast internet"}, record.Tabs["ProsAndCons"].Pros)
	require.Equal(t, []string{"Crowded in summer"}, record.Tabs["ProsAndCons"].Cons)

	require.Equal(t, []string{"Porto", "Faro"}, record.Tabs["Near"].RelatedCities)
}

func TestExtractCityDetailsIsDeterministic(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/nomadlist")
	defer cleanup()

	first := ExtractCityDetails(context.Background(), parsePage(t, lisbonPage))
	second := ExtractCityDetails(context.Background(), parsePage(t, lisbonPage))
	require.NotNil(t, first)
	require.Equal(t, first, second)
}

func TestExtractCityDetailsNotADetailPage(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/nomadlist")
	defer cleanup()

	record := ExtractCityDetails(context.Background(), parsePage(t,
		`<html><body><h1>Page not found</h1></body></html>`))
	require.Nil(t, record)
}

func TestExtractCityDetailsMissingRank(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/nomadlist")
	defer cleanup()

	record := ExtractCityDetails(context.Background(), parsePage(t, `<html><body>
		<div class="text"><h1>Lisbon</h1><h2>Portugal</h2></div>
		<div class="tab tab-ranking"><table class="details">
			<tr><td class="key">Overall</td><td class="value">Great</td></tr>
		</table></div>
	</body></html>`))
	require.Nil(t, record)
}

func TestApplyEnrichment(t *testing.T) {
	record := &CityRecord{City: "Lisbon", Country: "Portugal", Rank: 7}

	applyEnrichment(record,
		map[string]string{"population": "505526", "timezone": "WET"},
		map[string]string{"population": "10300000", "currency": "EUR", "city": "echoed back"})

	// city-level data wins over country-level data
	require.Equal(t, "505526", record.Meta["population"])
	require.Equal(t, "WET", record.Meta["timezone"])
	require.Equal(t, "EUR", record.Meta["currency"])
	require.NotContains(t, record.Meta, "city")
}
