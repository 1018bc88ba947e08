package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"nomadscout/lib/citystore"
	"nomadscout/lib/enrichment"
	"nomadscout/lib/report"
	"nomadscout/lib/scrapers/nomadlist"
	"nomadscout/lib/telemetry"

	"github.com/spf13/cobra"
)

var scrapeFlags = struct {
	maxCities   *int
	batchSize   *int
	listingFile *string
	noEnrich    *bool
}{}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Crawls the city listing and reconciles every detail page into the database.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx)

		base, err := url.Parse(cfg.BaseUrl)
		if err != nil {
			fatal("invalid base url", err)
		}

		database := openDB(cfg)
		defer database.Close()
		store := citystore.NewStore(database)

		client := nomadlist.NewClient(nomadlist.ClientOptions{
			BaseUrl:   cfg.BaseUrl,
			MaxJitter: time.Duration(cfg.MaxJitterMs) * time.Millisecond,
		})

		batch := *scrapeFlags.batchSize
		if batch <= 0 {
			batch = cfg.BatchSize
		}
		crawler := nomadlist.Crawler{
			BaseUrl:   base,
			Fetcher:   client,
			Metadata:  metadataSource(cfg),
			BatchSize: batch,
			MaxCities: *scrapeFlags.maxCities,
		}
		if *scrapeFlags.noEnrich {
			crawler.Metadata = nil
		}

		listing, err := openListing(ctx, client, base)
		if err != nil {
			fatal("failed to load listing page", err)
		}
		defer listing.Close()

		summary, err := crawler.Crawl(ctx, listing, func(ctx context.Context, record *nomadlist.CityRecord) error {
			err := store.Put(ctx, record)
			if errors.Is(err, citystore.ErrSchemaMissing) {
				return err
			}
			if err != nil {
				slog.WarnContext(ctx, "failed to store city", "city", record.City, "err", err)
			}
			return nil
		})

		if reportErr := report.SendSummary(cfg.Report, summary); reportErr != nil {
			slog.WarnContext(ctx, "failed to send crawl summary", "err", reportErr)
		}
		if err != nil {
			fatal("crawl aborted", err)
		}
	},
}

func metadataSource(cfg Config) nomadlist.MetadataSource {
	if cfg.Enrichment.BaseUrl == "" {
		return nil
	}
	return enrichment.NewClient(cfg.Enrichment)
}

// openListing reads the listing page from the override file when one is
// given, otherwise fetches it live. The caller closes the result.
func openListing(ctx context.Context, client *nomadlist.Client, base *url.URL) (io.ReadCloser, error) {
	if *scrapeFlags.listingFile != "" {
		return os.Open(*scrapeFlags.listingFile)
	}

	status, body, err := client.FetchPage(ctx, base.String())
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("listing page returned status %d", status)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func init() {
	scrapeFlags.maxCities = scrapeCmd.Flags().Int("max-cities", 0, "Stop after this many cities, 0 means all.")
	scrapeFlags.batchSize = scrapeCmd.Flags().Int("batch-size", 0, "Max in-flight detail fetches, overrides the config.")
	scrapeFlags.listingFile = scrapeCmd.Flags().String("listing-file", "", "Read the listing page from this file instead of fetching it.")
	scrapeFlags.noEnrich = scrapeCmd.Flags().Bool("no-enrich", false, "Skip the location metadata lookups.")
	rootCmd.AddCommand(scrapeCmd)
}
