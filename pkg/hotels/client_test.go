package hotels

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/tripcost/internal/testutil"
	"github.com/Sternrassler/tripcost/pkg/provider"
	"github.com/Sternrassler/tripcost/pkg/upstream"
)

var matchDay = time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, mock *testutil.MockUpstream) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:    "rapid-key",
		BaseURL:   mock.URL(),
		UserAgent: "TripCost/1.0 (test)",
		Retry:     upstream.NoRetryPolicy(),
	})
	require.NoError(t, err)
	return c
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		city string
		want float64
	}{
		{"London", 300},
		{"Madrid", 200},
		{"Barcelona", 240},
		{"Rome", 220},
		{"Milan", 260},
		{"Munich", 240},
		{"Berlin", 200},
		{"Paris", 280},
		{"Manchester", 180},
		{"Liverpool", 170},
		{"Seville", 200},
		{"", 200},
	}

	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			q := Estimate(tt.city)
			assert.Equal(t, tt.want, q.Price)
			assert.True(t, q.Estimated)
			assert.Empty(t, q.Link)
		})
	}
}

func TestHotelPrice_NoKey(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	q, err := c.HotelPrice(context.Background(), "Paris", matchDay)
	require.NoError(t, err)
	assert.Equal(t, &provider.Quote{Price: 280, Estimated: true}, q)
}

func TestHotelPrice_Live(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	var gotSearch map[string][]string
	mock.SetResponse(testutil.PathBookingLocations, testutil.NewJSONResponse(testutil.BookingLocationsBody("-390625", "city")))
	mock.SetHandler(testutil.PathBookingSearch, func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query()
		w.Write([]byte(testutil.BookingSearchBody(176.4, "https://www.booking.com/hotel/es/test.html")))
	})

	q, err := newTestClient(t, mock).HotelPrice(context.Background(), "Madrid", matchDay)
	require.NoError(t, err)
	assert.Equal(t, &provider.Quote{Price: 176.4, Link: "https://www.booking.com/hotel/es/test.html"}, q)

	assert.Equal(t, "-390625", gotSearch["dest_id"][0])
	assert.Equal(t, "2024-03-09", gotSearch["checkin_date"][0])
	assert.Equal(t, "2024-03-11", gotSearch["checkout_date"][0])
	assert.Equal(t, "rapid-key", mock.LastRequestHeader().Get("X-RapidAPI-Key"))
	assert.Equal(t, RapidAPIHost, mock.LastRequestHeader().Get("X-RapidAPI-Host"))
}

func TestHotelPrice_PicksCheapest(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse(testutil.PathBookingLocations, testutil.NewJSONResponse(
		`[{"dest_id":"1","dest_type":"region"},{"dest_id":"2","dest_type":"city"}]`,
	))
	var gotDest string
	mock.SetHandler(testutil.PathBookingSearch, func(w http.ResponseWriter, r *http.Request) {
		gotDest = r.URL.Query().Get("dest_id")
		w.Write([]byte(`{"result":[
			{"min_total_price":310,"url":"https://b/1"},
			{"min_total_price":0,"url":"https://b/0"},
			{"min_total_price":205.5,"url":"https://b/2"}
		]}`))
	})

	q, err := newTestClient(t, mock).HotelPrice(context.Background(), "Rome", matchDay)
	require.NoError(t, err)
	assert.Equal(t, "2", gotDest)
	assert.Equal(t, 205.5, q.Price)
	assert.Equal(t, "https://b/2", q.Link)
}

func TestHotelPrice_FallsBack(t *testing.T) {
	tests := []struct {
		name      string
		locations testutil.MockResponse
		search    testutil.MockResponse
	}{
		{"unknown destination", testutil.NewJSONResponse(`[]`), testutil.NewJSONResponse(`{"result":[]}`)},
		{"no hotels", testutil.NewJSONResponse(testutil.BookingLocationsBody("1", "city")), testutil.NewJSONResponse(`{"result":[]}`)},
		{"rate limited", testutil.NewRateLimitResponse(), testutil.NewJSONResponse(`{"result":[]}`)},
		{"search fails", testutil.NewJSONResponse(testutil.BookingLocationsBody("1", "city")), testutil.NewServerErrorResponse()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockUpstream()
			defer mock.Close()
			mock.SetResponse(testutil.PathBookingLocations, tt.locations)
			mock.SetResponse(testutil.PathBookingSearch, tt.search)

			q, err := newTestClient(t, mock).HotelPrice(context.Background(), "Milan", matchDay)
			require.NoError(t, err)
			assert.Equal(t, Estimate("Milan"), q)
		})
	}
}
