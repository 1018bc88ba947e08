package citystore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type FilterParams struct {
	Country   string
	Continent string
	// inclusive, 0 disables the bound
	RankFrom int64
	RankTo   int64
	// one of rank, name, country, continent
	SortBy string
	// ASC or DESC
	Order string
	// 0 means no limit
	Limit int64
}

type CityRow struct {
	Rank      int64
	City      string
	Country   string
	Continent string
}

// sortColumns whitelists what user input may end up in ORDER BY.
var sortColumns = map[string]string{
	"rank":      "cities.rank",
	"name":      "cities.name",
	"country":   "countries.name",
	"continent": "continents.name",
}

// FilterCities serves the CLI's query surface over whatever previous
// crawl runs have reconciled.
func (s *Store) FilterCities(ctx context.Context, params FilterParams) ([]CityRow, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT cities.rank, cities.name,
			COALESCE(countries.name, ''), COALESCE(continents.name, '')
		FROM cities
		LEFT JOIN countries ON countries.id = cities.country_id
		LEFT JOIN continents ON continents.id = countries.continent_id
		WHERE 1 = 1`)
	var args []any

	if params.Country != "" {
		query.WriteString(" AND countries.name = ?")
		args = append(args, params.Country)
	}
	if params.Continent != "" {
		query.WriteString(" AND continents.name = ?")
		args = append(args, params.Continent)
	}
	if params.RankFrom > 0 {
		query.WriteString(" AND cities.rank >= ?")
		args = append(args, params.RankFrom)
	}
	if params.RankTo > 0 {
		query.WriteString(" AND cities.rank <= ?")
		args = append(args, params.RankTo)
	}

	column, ok := sortColumns[params.SortBy]
	if !ok {
		column = sortColumns["rank"]
	}
	order := "ASC"
	if strings.EqualFold(params.Order, "DESC") {
		order = "DESC"
	}
	query.WriteString(fmt.Sprintf(" ORDER BY %s %s", column, order))

	if params.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, params.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []CityRow
	for rows.Next() {
		var row CityRow
		err = rows.Scan(&row.Rank, &row.City, &row.Country, &row.Continent)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ApplySchema initializes the target database. Safe to run repeatedly.
func ApplySchema(ctx context.Context, database *sql.DB, schema string) error {
	_, err := database.ExecContext(ctx, schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}
