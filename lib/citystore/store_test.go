package citystore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"nomadscout/lib/citystore/db"
	"nomadscout/lib/scrapers/nomadlist"
	"nomadscout/lib/testutil"

	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *sql.DB, func()) {
	database, cleanup := testutil.SetupDB(t, testutil.DBParams{
		Name:   "citystore",
		Schema: db.Schema,
	})
	return NewStore(database), database, cleanup
}

func lisbonRecord() *nomadlist.CityRecord {
	return &nomadlist.CityRecord{
		City:      "Lisbon",
		Country:   "Portugal",
		Continent: "Europe",
		Rank:      7,
		Tabs: map[string]nomadlist.TabData{
			"Scores": {Facts: map[string]nomadlist.Fact{
				"Overall": {Value: "0.80", Description: "Great (Rank #7)"},
				"Safety":  {Value: "0.55", Description: "Okay"},
			}},
			"Weather": {Monthly: map[string][]nomadlist.MonthlyFact{
				"Feels": {
					{Month: 1, Value: "12°C", Description: "(cold)"},
					{Month: 2, Value: "14°C", Description: "(mild)"},
				},
			}},
			"Reviews": {Reviews: []nomadlist.Review{
				{Description: "Great city for remote work.", PublishedAt: time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)},
			}},
			"Photos":      {Photos: []string{"https://example.com/a.jpg"}},
			"ProsAndCons": {Pros: []string{"Warm all year"}, Cons: []string{"Crowded in summer"}},
			"Near":        {RelatedCities: []string{"Porto"}},
		},
		Meta: map[string]string{"population": "505526"},
	}
}

func count(t *testing.T, database *sql.DB, table string) int {
	var n int
	err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	require.NoError(t, err)
	return n
}

var allTables = []string{
	"continents", "countries", "cities", "tabs", "attributes",
	"city_attributes", "monthly_attributes", "reviews", "photos",
	"pros_and_cons", "city_relationships",
}

func TestPutIsIdempotent(t *testing.T) {
	store, database, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, lisbonRecord()))

	before := map[string]int{}
	for _, table := range allTables {
		before[table] = count(t, database, table)
	}
	// Lisbon plus the Porto stub from the Near tab
	require.Equal(t, 2, before["cities"])
	// only fact-bearing tabs mint dictionary rows: Scores, Weather and
	// the synthetic Metadata tab
	require.Equal(t, 3, before["tabs"])

	require.NoError(t, store.Put(ctx, lisbonRecord()))
	for _, table := range allTables {
		require.Equal(t, before[table], count(t, database, table), table)
	}
}

func TestPutUpdatesInPlace(t *testing.T) {
	store, database, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, lisbonRecord()))

	record := lisbonRecord()
	record.Rank = 47
	scores := record.Tabs["Scores"].Facts
	scores["Overall"] = nomadlist.Fact{Value: "0.74", Description: "Good (Rank #47)"}
	require.NoError(t, store.Put(ctx, record))

	var rank int64
	err := database.QueryRow("SELECT rank FROM cities WHERE name = 'Lisbon'").Scan(&rank)
	require.NoError(t, err)
	require.Equal(t, int64(47), rank)

	var value string
	err = database.QueryRow(`
		SELECT city_attributes.value FROM city_attributes
		JOIN attributes ON attributes.id = city_attributes.attribute_id
		WHERE attributes.name = 'Overall'`).Scan(&value)
	require.NoError(t, err)
	require.Equal(t, "0.74", value)

	// updated, never duplicated
	require.Equal(t, 2, count(t, database, "cities"))
	require.Equal(t, 3, count(t, database, "city_attributes"))
}

func TestReviewsIngestIncrementally(t *testing.T) {
	store, database, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, lisbonRecord()))

	record := lisbonRecord()
	record.Tabs["Reviews"] = nomadlist.TabData{Reviews: []nomadlist.Review{
		// older than the stored newest, must be skipped
		{Description: "Was here last month.", PublishedAt: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Description: "Even better this time.", PublishedAt: time.Date(2021, 7, 15, 0, 0, 0, 0, time.UTC)},
	}}
	require.NoError(t, store.Put(ctx, record))

	require.Equal(t, 2, count(t, database, "reviews"))

	var newest int64
	err := database.QueryRow("SELECT MAX(published_at) FROM reviews").Scan(&newest)
	require.NoError(t, err)
	require.Equal(t, time.Date(2021, 7, 15, 0, 0, 0, 0, time.UTC).Unix(), newest)
}

func TestProsConsFuzzyDedup(t *testing.T) {
	store, database, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, lisbonRecord()))
	require.Equal(t, 2, count(t, database, "pros_and_cons"))

	record := lisbonRecord()
	record.Tabs["ProsAndCons"] = nomadlist.TabData{
		// a minor rewording of a stored statement, plus a genuinely new one
		Pros: []string{"Warm all year!"},
		Cons: []string{"Crowded in summer", "Expensive flights"},
	}
	require.NoError(t, store.Put(ctx, record))

	require.Equal(t, 3, count(t, database, "pros_and_cons"))
}

func TestRelationshipEdges(t *testing.T) {
	store, database, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, lisbonRecord()))
	require.Equal(t, 1, count(t, database, "city_relationships"))

	// same edge again plus a second edge kind to the same city
	record := lisbonRecord()
	record.Tabs["Similar"] = nomadlist.TabData{RelatedCities: []string{"Porto"}}
	require.NoError(t, store.Put(ctx, record))
	require.Equal(t, 2, count(t, database, "city_relationships"))
}

func TestStubNeverClobbersReconciledCity(t *testing.T) {
	store, database, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, lisbonRecord()))

	porto := &nomadlist.CityRecord{
		City:      "Porto",
		Country:   "Portugal",
		Continent: "Europe",
		Rank:      31,
		Tabs: map[string]nomadlist.TabData{
			"Near": {RelatedCities: []string{"Lisbon"}},
		},
	}
	require.NoError(t, store.Put(ctx, porto))

	// the Porto stub got reconciled in place
	require.Equal(t, 2, count(t, database, "cities"))
	var rank int64
	err := database.QueryRow("SELECT rank FROM cities WHERE name = 'Porto'").Scan(&rank)
	require.NoError(t, err)
	require.Equal(t, int64(31), rank)

	// and Porto's Near edge back to Lisbon left Lisbon's rank alone
	err = database.QueryRow("SELECT rank FROM cities WHERE name = 'Lisbon'").Scan(&rank)
	require.NoError(t, err)
	require.Equal(t, int64(7), rank)
}

func TestPutWithoutSchema(t *testing.T) {
	database, cleanup := testutil.SetupDB(t, testutil.DBParams{Name: "citystore"})
	defer cleanup()

	store := NewStore(database)
	err := store.Put(context.Background(), lisbonRecord())
	require.ErrorIs(t, err, ErrSchemaMissing)
}

func TestFilterCities(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, lisbonRecord()))
	require.NoError(t, store.Put(ctx, &nomadlist.CityRecord{
		City:      "Berlin",
		Country:   "Germany",
		Continent: "Europe",
		Rank:      12,
	}))

	rows, err := store.FilterCities(ctx, FilterParams{Country: "Portugal"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, CityRow{Rank: 7, City: "Lisbon", Country: "Portugal", Continent: "Europe"}, rows[0])

	rows, err = store.FilterCities(ctx, FilterParams{
		Continent: "Europe",
		RankFrom:  1,
		RankTo:    50,
		SortBy:    "rank",
		Order:     "DESC",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Berlin", rows[0].City)
	require.Equal(t, "Lisbon", rows[1].City)

	rows, err = store.FilterCities(ctx, FilterParams{Continent: "Europe", RankFrom: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Lisbon", rows[0].City)
}
