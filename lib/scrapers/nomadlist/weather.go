package nomadlist

import (
	"nomadscout/lib/htmlutil"
	"nomadscout/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// extractWeatherTab reads the climate matrix: the first table row holds
// the twelve month headers, every following row is one fact kind
// ("Feels", "Humidity", ...) with a cell per month.
//
// Temperature-style cells carry separate metric and descriptor spans.
// Index-style cells (humidity, rain chance, ...) are a single text run of
// digits followed by a descriptor, split by character class.
func extractWeatherTab(sel *goquery.Selection) (TabData, error) {
	monthly := map[string][]MonthlyFact{}

	sel.Find("table.climate tr").Each(func(rowIdx int, row *goquery.Selection) {
		if rowIdx == 0 {
			// month header row, months are tracked positionally
			return
		}

		kind := textutil.StripLeadingIcon(htmlutil.Text(row.Find("td.key")))
		if kind == "" {
			return
		}

		var cells []MonthlyFact
		row.Find("td.value").Each(func(colIdx int, cell *goquery.Selection) {
			if colIdx >= 12 {
				return
			}
			fact := MonthlyFact{Month: colIdx + 1}

			metric := cell.Find("span.metric")
			if metric.Length() > 0 {
				fact.Value = htmlutil.Text(metric)
				fact.Description = htmlutil.Text(cell.Find("span.desc"))
			} else {
				fact.Value, fact.Description = textutil.SplitDigitsText(cell.Text())
			}
			cells = append(cells, fact)
		})

		if len(cells) > 0 {
			monthly[kind] = cells
		}
	})

	return TabData{Monthly: monthly}, nil
}
