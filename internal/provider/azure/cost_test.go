package azure

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildQueryTimePeriod(t *testing.T) {
	def, err := buildQuery(provider.CostQuery{
		Range:       model.DateRange{Start: day(2024, time.January, 31), End: day(2024, time.January, 31)},
		Granularity: model.GranularityDaily,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-31T00:00:00.000Z", def.TimePeriod["from"])
	assert.Equal(t, "2024-01-31T23:59:59.999Z", def.TimePeriod["to"])
	assert.Equal(t, "Daily", def.Dataset.Granularity)
	assert.Nil(t, def.Dataset.Filter)
}

func TestBuildFilter(t *testing.T) {
	f, err := buildFilter(model.CostFilters{Tags: map[string]string{"env": "prod"}})
	require.NoError(t, err)
	require.NotNil(t, f.Tags)
	assert.Empty(t, f.And)

	f, err = buildFilter(model.CostFilters{
		Tags:       map[string]string{"env": "prod"},
		Dimensions: map[string]string{"service": "Storage", "region": "westeurope"},
	})
	require.NoError(t, err)
	require.Len(t, f.And, 3)
	assert.Equal(t, "ResourceLocation", f.And[0].Dimensions.Name)
	assert.Equal(t, "ServiceName", f.And[1].Dimensions.Name)
	assert.Equal(t, "env", f.And[2].Tags.Name)

	_, err = buildFilter(model.CostFilters{Dimensions: map[string]string{"flavor": "x"}})
	assert.Error(t, err)
}

func TestClientAgainstFakeAPI(t *testing.T) {
	var tokenCalls, queryCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/subscriptions/sub-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"subscriptionId":"sub-1","displayName":"Prod"}`))
	})

	var srv *httptest.Server
	mux.HandleFunc("/subscriptions/sub-1/providers/Microsoft.CostManagement/query", func(w http.ResponseWriter, r *http.Request) {
		n := queryCalls.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var def queryDefinition
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&def))

		if len(def.Dataset.Grouping) == 0 {
			w.Write([]byte(`{"properties":{"columns":[{"name":"Cost"},{"name":"UsageDate"}],"rows":[[10.5,20240101],[4.25,20240102]]}}`))
			return
		}
		if n%2 == 0 {
			// first grouped page links to the second
			w.Write([]byte(`{"properties":{"nextLink":"` + srv.URL + `/subscriptions/sub-1/providers/Microsoft.CostManagement/query?page=2","columns":[{"name":"Cost"},{"name":"ServiceName"}],"rows":[[7,"Storage"],[1,"Compute"]]}}`))
			return
		}
		w.Write([]byte(`{"properties":{"columns":[{"name":"Cost"},{"name":"ServiceName"}],"rows":[[2,"Compute"]]}}`))
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(&model.AzureCredentials{
		TenantID: "tenant-1", ClientID: "c", ClientSecret: "s", SubscriptionID: "sub-1",
	}, Endpoints{Management: srv.URL, Login: srv.URL}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	id, err := c.AccountID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)

	q := provider.CostQuery{
		Range:       model.DateRange{Start: day(2024, time.January, 1), End: day(2024, time.January, 2)},
		Granularity: model.GranularityDaily,
	}
	total, err := c.TotalCost(ctx, q)
	require.NoError(t, err)
	assert.InDelta(t, 14.75, total, 1e-9)

	q.GroupBy = provider.DimensionService
	byService, err := c.CostByDimension(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Storage": 7, "Compute": 3}, byService)

	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"AuthorizationFailed"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := newClient("sub-1", srv.URL, srv.Client(), testLogger())
	_, err := c.TotalCost(context.Background(), provider.CostQuery{
		Range: model.DateRange{Start: day(2024, time.January, 1), End: day(2024, time.January, 1)},
	})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "403"))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(&model.AzureCredentials{TenantID: "t"}, Endpoints{}, testLogger())
	assert.Error(t, err)
	_, err = NewClient(nil, Endpoints{}, testLogger())
	assert.Error(t, err)
}
