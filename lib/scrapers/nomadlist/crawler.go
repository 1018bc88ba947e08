package nomadlist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("scrapers/nomadlist")

// PageFetcher fetches one detail page. The crawler treats any transport
// error or non-2xx status as a per-city failure.
type PageFetcher interface {
	FetchPage(ctx context.Context, link string) (status int, body []byte, err error)
}

// MetadataSource is the optional enrichment lookup collaborator. Missing
// entries are expected and yield empty metadata.
type MetadataSource interface {
	CountryMeta(ctx context.Context, name string) (map[string]string, error)
	CityMeta(ctx context.Context, name string) (map[string]string, error)
}

// Summary is the end-of-run accounting handed to the CLI. Succeeded
// counts records the handler accepted, Failed counts cities lost to
// fetch or extraction problems.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

type Crawler struct {
	BaseUrl *url.URL
	Fetcher PageFetcher
	// optional, nil disables enrichment
	Metadata MetadataSource
	// max in-flight detail fetches
	BatchSize int
	// 0 means no limit
	MaxCities int
}

type candidate struct {
	slug string
	link string
}

// the listing template renders placeholder rows like data-slug="{slug}"
// before hydration; those must never be fetched
var placeholderRegex = regexp.MustCompile(`\{\w+\}`)

func (c Crawler) collectCandidates(ctx context.Context, doc *goquery.Document) []candidate {
	var out []candidate
	doc.Find("li[data-type=city]").Each(func(_ int, li *goquery.Selection) {
		slug := li.AttrOr("data-slug", "")
		if placeholderRegex.MatchString(slug) {
			slog.DebugContext(ctx, "skipping template listing entry", "slug", slug)
			return
		}

		href, ok := li.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		link, err := url.Parse(href)
		if err != nil {
			slog.WarnContext(ctx, "unparseable city link", "slug", slug, "href", href, "err", err)
			return
		}

		out = append(out, candidate{
			slug: slug,
			link: c.BaseUrl.ResolveReference(link).String(),
		})
	})
	return out
}

// Crawl enumerates the listing page, fetches every valid city's detail
// page with bounded parallelism and feeds the extracted records, one at
// a time, to handle. The handler runs on the calling goroutine, so a
// single-writer store can consume records without extra locking.
//
// A failed fetch only costs that one city. A handler error is fatal and
// cancels the rest of the run.
func (c Crawler) Crawl(ctx context.Context, listing io.Reader, handle func(context.Context, *CityRecord) error) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Crawl")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(listing)
	if err != nil {
		return Summary{}, fmt.Errorf("parse listing page: %w", err)
	}

	candidates := c.collectCandidates(ctx, doc)
	if c.MaxCities > 0 && len(candidates) > c.MaxCities {
		candidates = candidates[:c.MaxCities]
	}
	slog.InfoContext(ctx, "crawling cities", "count", len(candidates), "batch_size", c.BatchSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batch := c.BatchSize
	if batch <= 0 {
		batch = 8
	}

	var failed atomic.Int64
	records := make(chan *CityRecord)

	group := errgroup.Group{}
	group.SetLimit(batch)
	go func() {
		for _, cand := range candidates {
			cand := cand
			group.Go(func() error {
				record := c.scrapeCity(ctx, cand)
				if record == nil {
					failed.Add(1)
					return nil
				}
				select {
				case records <- record:
				case <-ctx.Done():
				}
				return nil
			})
		}
		group.Wait()
		close(records)
	}()

	succeeded := 0
	var handleErr error
	for record := range records {
		if handleErr != nil {
			continue
		}
		err := handle(ctx, record)
		if err != nil {
			handleErr = err
			cancel()
			continue
		}
		succeeded++
	}

	summary := Summary{
		Total:     len(candidates),
		Succeeded: succeeded,
		Failed:    int(failed.Load()),
	}
	span.SetAttributes(
		attribute.Int("total", summary.Total),
		attribute.Int("succeeded", summary.Succeeded),
		attribute.Int("failed", summary.Failed),
	)
	slog.InfoContext(ctx, "crawl finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, handleErr
}

func (c Crawler) scrapeCity(ctx context.Context, cand candidate) *CityRecord {
	if ctx.Err() != nil {
		return nil
	}

	status, body, err := c.Fetcher.FetchPage(ctx, cand.link)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch city page", "slug", cand.slug, "url", cand.link, "err", err)
		return nil
	}
	if status < 200 || status > 299 {
		slog.WarnContext(ctx, "bad status for city page", "slug", cand.slug, "url", cand.link, "status", status)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		slog.WarnContext(ctx, "failed to parse city page", "slug", cand.slug, "url", cand.link, "err", err)
		return nil
	}

	record := ExtractCityDetails(ctx, doc)
	if record == nil {
		slog.WarnContext(ctx, "page yielded no city record", "slug", cand.slug, "url", cand.link)
		return nil
	}

	c.enrich(ctx, record)
	return record
}

func (c Crawler) enrich(ctx context.Context, record *CityRecord) {
	if c.Metadata == nil {
		return
	}

	cityMeta, err := c.Metadata.CityMeta(ctx, record.City)
	if err != nil {
		slog.WarnContext(ctx, "city metadata lookup failed", "city", record.City, "err", err)
	}
	countryMeta, err := c.Metadata.CountryMeta(ctx, record.Country)
	if err != nil {
		slog.WarnContext(ctx, "country metadata lookup failed", "country", record.Country, "err", err)
	}
	applyEnrichment(record, cityMeta, countryMeta)
}
