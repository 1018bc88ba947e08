package nomadlist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"nomadscout/lib/htmlutil"
	"nomadscout/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// extractKeyValueTab reads paired key/value rows out of a details table.
// Used by the Scores, DigitalNomadGuide and CostOfLiving tabs, whose
// markup only differs in the shape of the value cell.
func extractKeyValueTab(sel *goquery.Selection) (TabData, error) {
	facts := map[string]Fact{}

	sel.Find("table.details tr").Each(func(_ int, row *goquery.Selection) {
		key := textutil.StripLeadingIcon(htmlutil.Text(row.Find("td.key")))
		if key == "" {
			return
		}

		cell := row.Find("td.value")
		if cell.Length() == 0 {
			return
		}
		facts[key] = extractValueCell(cell)
	})

	return TabData{Facts: facts}, nil
}

var widthRegex = regexp.MustCompile(`width:\s*([\d.]+)%`)

// extractValueCell decodes the three value-cell shapes the key-value
// tabs use: a score bar (style width percentage), an explicit
// value/description span pair, or plain text.
func extractValueCell(cell *goquery.Selection) Fact {
	fact := Fact{Url: htmlutil.Href(cell)}

	filling := cell.Find("div.filling")
	if filling.Length() > 0 {
		style := filling.AttrOr("style", "")
		groups := widthRegex.FindStringSubmatch(style)
		if len(groups) == 2 {
			percent, err := strconv.ParseFloat(groups[1], 64)
			if err == nil {
				fact.Value = strconv.FormatFloat(percent/100, 'f', 2, 64)
				fact.Description = htmlutil.Text(cell)
				return fact
			}
		}
	}

	valueSpan := cell.Find("span.value")
	if valueSpan.Length() > 0 {
		fact.Value = htmlutil.Text(valueSpan)
		fact.Description = htmlutil.Text(cell.Find("span.desc"))
		return fact
	}

	fact.Value = htmlutil.Text(cell)
	return fact
}

var rankRegex = regexp.MustCompile(`\(Rank #(\d+)\)`)

// scoresRank pulls the city's overall rank out of the Scores tab. The
// site embeds it as a "(Rank #N)" token in the first value cell.
//
// Known site quirk: on long listings the rank token past position ~26 can
// repeat a stale value. A well-formed token is stored as-is; only a
// missing or malformed token is an error.
func scoresRank(doc *goquery.Document) (int64, error) {
	cell := doc.Find("div.tab.tab-ranking table.details td.value").First()
	text := htmlutil.Text(cell)

	groups := rankRegex.FindStringSubmatch(text)
	if len(groups) != 2 {
		return 0, fmt.Errorf("no rank token in scores tab: %q", text)
	}
	rank, err := strconv.ParseInt(groups[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rank %q: %w", groups[1], err)
	}
	return rank, nil
}

// guideContinent resolves the parent continent through the
// DigitalNomadGuide tab's own key-value table.
func guideContinent(facts map[string]Fact) string {
	for key, fact := range facts {
		if strings.EqualFold(key, "continent") {
			return fact.Value
		}
	}
	return ""
}
