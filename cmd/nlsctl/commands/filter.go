package commands

import (
	"os"

	"nomadscout/lib/citystore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var filterFlags = struct {
	country   *string
	continent *string
	rankFrom  *int64
	rankTo    *int64
	sortBy    *string
	order     *string
	limit     *int64
}{}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Queries the stored cities and prints the matches as a table.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		database := openDB(cfg)
		defer database.Close()
		store := citystore.NewStore(database)

		rows, err := store.FilterCities(cmd.Context(), citystore.FilterParams{
			Country:   *filterFlags.country,
			Continent: *filterFlags.continent,
			RankFrom:  *filterFlags.rankFrom,
			RankTo:    *filterFlags.rankTo,
			SortBy:    *filterFlags.sortBy,
			Order:     *filterFlags.order,
			Limit:     *filterFlags.limit,
		})
		if err != nil {
			fatal("failed to query cities", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Rank", "City", "Country", "Continent"})
		for _, row := range rows {
			t.AppendRow(table.Row{row.Rank, row.City, row.Country, row.Continent})
		}
		t.Render()
	},
}

func init() {
	filterFlags.country = filterCmd.Flags().String("country", "", "Only cities in this country.")
	filterFlags.continent = filterCmd.Flags().String("continent", "", "Only cities on this continent.")
	filterFlags.rankFrom = filterCmd.Flags().Int64("rank-from", 0, "Lowest rank to include, 0 disables the bound.")
	filterFlags.rankTo = filterCmd.Flags().Int64("rank-to", 0, "Highest rank to include, 0 disables the bound.")
	filterFlags.sortBy = filterCmd.Flags().String("sorted-by", "rank", "Sort column: rank, name, country or continent.")
	filterFlags.order = filterCmd.Flags().String("order", "ASC", "Sort order, ASC or DESC.")
	filterFlags.limit = filterCmd.Flags().Int64("limit", 0, "Max rows to print, 0 means all.")
	rootCmd.AddCommand(filterCmd)
}
