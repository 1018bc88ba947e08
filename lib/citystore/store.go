package citystore

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"

	"nomadscout/lib/scrapers/nomadlist"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("citystore")

// two pros/cons are considered the same statement above this similarity
const prosConsSimilarity = 0.92

// Store reconciles scraped city records into the normalized schema. It
// owns every persisted id; callers only ever hand it names.
//
// The id caches are scoped to one Store value and assume a single
// writer. Construct a fresh Store per crawl run.
type Store struct {
	db *sql.DB

	continents map[string]int64
	countries  map[string]int64
	tabs       map[string]int64
	// tab id -> attribute name -> attribute id
	attributes map[int64]map[string]int64
}

func NewStore(database *sql.DB) *Store {
	return &Store{
		db:         database,
		continents: map[string]int64{},
		countries:  map[string]int64{},
		tabs:       map[string]int64{},
		attributes: map[int64]map[string]int64{},
	}
}

// Put reconciles one record in a single transaction: hierarchy first,
// then the attribute dictionaries, then every dependent fact. Calling it
// again with an unchanged record writes nothing.
func (s *Store) Put(ctx context.Context, record *nomadlist.CityRecord) error {
	ctx, span := tracer.Start(ctx, "Put")
	defer span.End()
	span.SetAttributes(attribute.String("city", record.City))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyErr(err)
	}
	defer tx.Rollback()

	run := &txRun{store: s, tx: tx}
	err = run.putRecord(ctx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = tx.Commit()
	if err != nil {
		return classifyErr(err)
	}
	// ids minted inside the transaction only become trustworthy now
	run.promoteCaches()
	return nil
}

// txRun carries one Put's transaction plus the ids it created, which are
// promoted into the store caches only after commit.
type txRun struct {
	store *Store
	tx    *sql.Tx

	continents map[string]int64
	countries  map[string]int64
	tabs       map[string]int64
	attributes map[int64]map[string]int64
}

func (r *txRun) promoteCaches() {
	for name, id := range r.continents {
		r.store.continents[name] = id
	}
	for name, id := range r.countries {
		r.store.countries[name] = id
	}
	for name, id := range r.tabs {
		r.store.tabs[name] = id
	}
	for tabID, attrs := range r.attributes {
		if r.store.attributes[tabID] == nil {
			r.store.attributes[tabID] = map[string]int64{}
		}
		for name, id := range attrs {
			r.store.attributes[tabID][name] = id
		}
	}
}

func (r *txRun) putRecord(ctx context.Context, record *nomadlist.CityRecord) error {
	cityID, err := r.putHierarchy(ctx, record)
	if err != nil {
		return err
	}

	for _, tabName := range sortedKeys(record.Tabs) {
		data := record.Tabs[tabName]
		switch {
		case data.Facts != nil:
			err = r.putFacts(ctx, cityID, tabName, data.Facts)
		case data.Monthly != nil:
			err = r.putMonthly(ctx, cityID, tabName, data.Monthly)
		case data.Reviews != nil:
			err = r.putReviews(ctx, cityID, data.Reviews)
		case data.Photos != nil:
			err = r.putPhotos(ctx, cityID, data.Photos)
		case data.Pros != nil || data.Cons != nil:
			err = r.putProsCons(ctx, cityID, data.Pros, data.Cons)
		case data.RelatedCities != nil:
			err = r.putRelated(ctx, cityID, tabName, data.RelatedCities)
		}
		if err != nil {
			return err
		}
	}

	if len(record.Meta) > 0 {
		// enrichment facts live under a synthetic tab of their own
		metaFacts := make(map[string]nomadlist.Fact, len(record.Meta))
		for key, value := range record.Meta {
			metaFacts[key] = nomadlist.Fact{Value: value}
		}
		err = r.putFacts(ctx, cityID, "Metadata", metaFacts)
		if err != nil {
			return err
		}
	}

	return nil
}

// putHierarchy upserts continent -> country -> city and returns the city
// id. Parent links are corrected in place when a later crawl disagrees
// with what is stored.
func (r *txRun) putHierarchy(ctx context.Context, record *nomadlist.CityRecord) (int64, error) {
	var continentID any
	if record.Continent != "" {
		id, err := r.continent(ctx, record.Continent)
		if err != nil {
			return 0, err
		}
		continentID = id
	}

	countryID, err := r.country(ctx, record.Country, continentID)
	if err != nil {
		return 0, err
	}

	return upsertRow(ctx, r.tx, "cities",
		[]string{"name", "rank", "country_id"},
		[]any{record.City, record.Rank, countryID},
		1)
}

func (r *txRun) continent(ctx context.Context, name string) (int64, error) {
	if id, ok := r.store.continents[name]; ok {
		return id, nil
	}
	if r.continents == nil {
		r.continents = map[string]int64{}
	}
	if id, ok := r.continents[name]; ok {
		return id, nil
	}

	id, err := upsertRow(ctx, r.tx, "continents", []string{"name"}, []any{name}, 1)
	if err != nil {
		return 0, err
	}
	r.continents[name] = id
	return id, nil
}

func (r *txRun) country(ctx context.Context, name string, continentID any) (int64, error) {
	if r.countries == nil {
		r.countries = map[string]int64{}
	}

	// a record without a continent has nothing to reconcile on the
	// parent link, so the cached id suffices and the stored link is
	// left alone
	if continentID == nil {
		if id, ok := r.store.countries[name]; ok {
			return id, nil
		}
		if id, ok := r.countries[name]; ok {
			return id, nil
		}
		id, err := upsertRow(ctx, r.tx, "countries", []string{"name"}, []any{name}, 1)
		if err != nil {
			return 0, err
		}
		r.countries[name] = id
		return id, nil
	}

	id, err := upsertRow(ctx, r.tx, "countries",
		[]string{"name", "continent_id"},
		[]any{name, continentID},
		1)
	if err != nil {
		return 0, err
	}
	r.countries[name] = id
	return id, nil
}

func (r *txRun) tab(ctx context.Context, name string) (int64, error) {
	if id, ok := r.store.tabs[name]; ok {
		return id, nil
	}
	if r.tabs == nil {
		r.tabs = map[string]int64{}
	}
	if id, ok := r.tabs[name]; ok {
		return id, nil
	}

	id, err := upsertRow(ctx, r.tx, "tabs", []string{"name"}, []any{name}, 1)
	if err != nil {
		return 0, err
	}
	r.tabs[name] = id
	return id, nil
}

func (r *txRun) attribute(ctx context.Context, tabID int64, name string) (int64, error) {
	if id, ok := r.store.attributes[tabID][name]; ok {
		return id, nil
	}
	if r.attributes == nil {
		r.attributes = map[int64]map[string]int64{}
	}
	if id, ok := r.attributes[tabID][name]; ok {
		return id, nil
	}

	id, err := upsertRow(ctx, r.tx, "attributes",
		[]string{"name", "tab_id"},
		[]any{name, tabID},
		2)
	if err != nil {
		return 0, err
	}
	if r.attributes[tabID] == nil {
		r.attributes[tabID] = map[string]int64{}
	}
	r.attributes[tabID][name] = id
	return id, nil
}

func (r *txRun) putFacts(ctx context.Context, cityID int64, tabName string, facts map[string]nomadlist.Fact) error {
	tabID, err := r.tab(ctx, tabName)
	if err != nil {
		return err
	}

	for _, name := range sortedKeys(facts) {
		fact := facts[name]
		attrID, err := r.attribute(ctx, tabID, name)
		if err != nil {
			return err
		}
		_, err = upsertRow(ctx, r.tx, "city_attributes",
			[]string{"city_id", "attribute_id", "value", "description", "url"},
			[]any{cityID, attrID, fact.Value, fact.Description, fact.Url},
			2)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRun) putMonthly(ctx context.Context, cityID int64, tabName string, monthly map[string][]nomadlist.MonthlyFact) error {
	tabID, err := r.tab(ctx, tabName)
	if err != nil {
		return err
	}

	for _, kind := range sortedKeys(monthly) {
		attrID, err := r.attribute(ctx, tabID, kind)
		if err != nil {
			return err
		}
		for _, cell := range monthly[kind] {
			_, err = upsertRow(ctx, r.tx, "monthly_attributes",
				[]string{"city_id", "attribute_id", "month", "value", "description"},
				[]any{cityID, attrID, int64(cell.Month), cell.Value, cell.Description},
				3)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// putReviews appends only reviews strictly newer than the newest one
// already stored for the city, so re-crawls ingest incrementally.
func (r *txRun) putReviews(ctx context.Context, cityID int64, reviews []nomadlist.Review) error {
	var newest int64
	err := r.tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(published_at), 0) FROM reviews WHERE city_id = ?",
		cityID,
	).Scan(&newest)
	if err != nil {
		return classifyErr(err)
	}

	for _, review := range reviews {
		published := review.PublishedAt.Unix()
		if published <= newest {
			continue
		}
		_, err = r.tx.ExecContext(ctx,
			"INSERT INTO reviews (city_id, description, published_at) VALUES (?, ?, ?)",
			cityID, review.Description, published,
		)
		if err != nil {
			return classifyErr(err)
		}
	}
	return nil
}

func (r *txRun) putPhotos(ctx context.Context, cityID int64, photos []string) error {
	for _, src := range photos {
		_, err := r.tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO photos (city_id, src) VALUES (?, ?)",
			cityID, src,
		)
		if err != nil {
			return classifyErr(err)
		}
	}
	return nil
}

// putProsCons appends statements, skipping near-duplicates of what is
// already stored. The site rewords these lists constantly, so dedup is
// fuzzy and best-effort.
func (r *txRun) putProsCons(ctx context.Context, cityID int64, pros, cons []string) error {
	rows, err := r.tx.QueryContext(ctx,
		"SELECT description FROM pros_and_cons WHERE city_id = ?",
		cityID,
	)
	if err != nil {
		return classifyErr(err)
	}
	var existing []string
	for rows.Next() {
		var description string
		if err := rows.Scan(&description); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, description)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	insert := func(description, kind string) error {
		for _, known := range existing {
			if matchr.JaroWinkler(description, known, false) >= prosConsSimilarity {
				slog.DebugContext(ctx, "skipping near-duplicate statement", "kind", kind, "description", description)
				return nil
			}
		}
		_, err := r.tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO pros_and_cons (city_id, description, type) VALUES (?, ?, ?)",
			cityID, description, kind,
		)
		if err != nil {
			return classifyErr(err)
		}
		existing = append(existing, description)
		return nil
	}

	for _, description := range pros {
		if err := insert(description, "pro"); err != nil {
			return err
		}
	}
	for _, description := range cons {
		if err := insert(description, "con"); err != nil {
			return err
		}
	}
	return nil
}

// putRelated creates name-only stub rows for cities we have not crawled
// yet and links them with typed, deduplicated edges.
func (r *txRun) putRelated(ctx context.Context, cityID int64, tabName string, related []string) error {
	kind, ok := nomadlist.RelationKind(tabName)
	if !ok {
		return nil
	}

	for _, name := range related {
		relatedID, err := r.stubCity(ctx, name)
		if err != nil {
			return err
		}
		_, err = r.tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO city_relationships (city_id, related_city_id, type) VALUES (?, ?, ?)",
			cityID, relatedID, kind,
		)
		if err != nil {
			return classifyErr(err)
		}
	}
	return nil
}

// stubCity resolves a city purely by name, inserting a bare row when
// unseen. It deliberately avoids upsertRow: a stub must never clobber the
// rank or country of a fully reconciled city.
func (r *txRun) stubCity(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.tx.QueryRowContext(ctx, "SELECT id FROM cities WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, classifyErr(err)
	}

	res, err := r.tx.ExecContext(ctx, "INSERT INTO cities (name) VALUES (?)", name)
	if err != nil {
		return 0, classifyErr(err)
	}
	return res.LastInsertId()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
