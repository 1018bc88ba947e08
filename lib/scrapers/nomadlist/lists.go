package nomadlist

import (
	"time"

	"nomadscout/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// reviewDateLayouts covers the formats the review widget has shipped
// with over time.
var reviewDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
}

func extractReviewsTab(sel *goquery.Selection) (TabData, error) {
	var reviews []Review

	sel.Find("div.review").Each(func(_ int, div *goquery.Selection) {
		text := htmlutil.Text(div.Find("p"))
		if text == "" {
			text = htmlutil.Text(div)
		}
		if text == "" {
			return
		}

		raw := div.AttrOr("data-datetime", "")
		var published time.Time
		for _, layout := range reviewDateLayouts {
			t, err := time.Parse(layout, raw)
			if err == nil {
				published = t
				break
			}
		}
		if published.IsZero() {
			// a review without a usable date can never pass the
			// newer-than-stored filter, drop it here
			return
		}

		reviews = append(reviews, Review{
			Description: text,
			PublishedAt: published,
		})
	})

	return TabData{Reviews: reviews}, nil
}

func extractPhotosTab(sel *goquery.Selection) (TabData, error) {
	var photos []string
	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if src != "" {
			photos = append(photos, src)
		}
	})
	return TabData{Photos: photos}, nil
}

func extractProsConsTab(sel *goquery.Selection) (TabData, error) {
	var pros, cons []string
	sel.Find("div.pros p").Each(func(_ int, p *goquery.Selection) {
		if text := htmlutil.Text(p); text != "" {
			pros = append(pros, text)
		}
	})
	sel.Find("div.cons p").Each(func(_ int, p *goquery.Selection) {
		if text := htmlutil.Text(p); text != "" {
			cons = append(cons, text)
		}
	})
	return TabData{Pros: pros, Cons: cons}, nil
}

// extractRelatedTab reads the Near/Next/Similar city grids. Only names
// are taken; the store creates stub rows for cities it has not crawled.
func extractRelatedTab(sel *goquery.Selection) (TabData, error) {
	var names []string
	sel.Find("li a h3").Each(func(_ int, h3 *goquery.Selection) {
		if name := htmlutil.Text(h3); name != "" {
			names = append(names, name)
		}
	})
	return TabData{RelatedCities: names}, nil
}
