package enrichment

import (
	"context"
	"net/http"
	"testing"

	"nomadscout/lib/telemetry"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const countriesPage1 = `{
	"pagination": {"count": 1, "total": 2, "offset": 0},
	"data": [{"country_name": "Portugal", "capital": "Lisbon", "population": 10300, "landlocked": false}]
}`

const countriesPage2 = `{
	"pagination": {"count": 1, "total": 2, "offset": 1},
	"data": [{"country_name": "Germany", "capital": "Berlin"}]
}`

func registerCountries(t *testing.T) {
	httpmock.RegisterResponder("GET", "https://api.test/countries",
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "secret", req.URL.Query().Get("access_key"))

			body := countriesPage1
			if req.URL.Query().Get("offset") == "1" {
				body = countriesPage2
			}
			res := httpmock.NewStringResponse(200, body)
			res.Header.Set("Content-Type", "application/json")
			return res, nil
		})
}

func TestCountryMeta(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:enrichment")
	defer cleanup()

	client := NewClient(Config{BaseUrl: "https://api.test", AccessKey: "secret"})
	httpmock.ActivateNonDefault(client.Resty().GetClient())
	defer httpmock.DeactivateAndReset()
	registerCountries(t)

	meta, err := client.CountryMeta(context.Background(), "  Portugal ")
	require.NoError(t, err)
	require.Equal(t, "Lisbon", meta["capital"])
	require.Equal(t, "10300", meta["population"])
	require.Equal(t, "false", meta["landlocked"])

	// both pages were walked and the whole resource is now indexed, so
	// further lookups never touch the network
	require.Equal(t, 2, httpmock.GetTotalCallCount())

	meta, err = client.CountryMeta(context.Background(), "germany")
	require.NoError(t, err)
	require.Equal(t, "Berlin", meta["capital"])
	require.Equal(t, 2, httpmock.GetTotalCallCount())

	// unknown names are routine
	meta, err = client.CountryMeta(context.Background(), "Atlantis")
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestSnapshotAvoidsRefetch(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:enrichment")
	defer cleanup()

	dir := t.TempDir()

	first := NewClient(Config{BaseUrl: "https://api.test", AccessKey: "secret", SnapshotDir: dir})
	httpmock.ActivateNonDefault(first.Resty().GetClient())
	registerCountries(t)

	_, err := first.CountryMeta(context.Background(), "Portugal")
	require.NoError(t, err)
	httpmock.DeactivateAndReset()

	// a fresh client with the same snapshot dir reads from disk; no
	// responders are registered, so any request would fail
	second := NewClient(Config{BaseUrl: "https://api.test", AccessKey: "secret", SnapshotDir: dir})
	httpmock.ActivateNonDefault(second.Resty().GetClient())
	defer httpmock.DeactivateAndReset()

	meta, err := second.CountryMeta(context.Background(), "Portugal")
	require.NoError(t, err)
	require.Equal(t, "Lisbon", meta["capital"])
}
