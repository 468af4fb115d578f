package testutil

import (
	"fmt"
	"net/http"
	"time"
)

// Upstream paths served by the mock.
const (
	PathFootballFixtures = "/fixtures"
	PathFootballTeams    = "/teams"
	PathAmadeusToken     = "/v1/security/oauth2/token"
	PathAmadeusOffers    = "/v2/shopping/flight-offers"
	PathBookingLocations = "/v1/hotels/locations"
	PathBookingSearch    = "/v1/hotels/search"
)

// FixtureSpec describes one api-sports fixture.
type FixtureSpec struct {
	ID     int
	Date   time.Time
	HomeID int
	Home   string
	AwayID int
	Away   string
	Venue  string
	City   string
	League string
}

func (f FixtureSpec) json() string {
	return fmt.Sprintf(`{
		"fixture": {"id": %d, "date": %q, "venue": {"id": 1, "name": %q, "city": %q}},
		"league": {"id": 140, "name": %q, "country": "Spain", "season": 2023},
		"teams": {"home": {"id": %d, "name": %q}, "away": {"id": %d, "name": %q}}
	}`, f.ID, f.Date.Format(time.RFC3339), f.Venue, f.City, f.League, f.HomeID, f.Home, f.AwayID, f.Away)
}

// FixturesBody renders an api-sports /fixtures envelope.
func FixturesBody(fixtures ...FixtureSpec) string {
	items := ""
	for i, f := range fixtures {
		if i > 0 {
			items += ","
		}
		items += f.json()
	}
	return fmt.Sprintf(`{"get":"fixtures","errors":[],"results":%d,"response":[%s]}`, len(fixtures), items)
}

// TeamsBody renders an api-sports /teams envelope for (id, name, city) triples.
func TeamsBody(teams ...[3]string) string {
	items := ""
	for i, t := range teams {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"team":{"id":%s,"name":%q,"logo":"https://media.api-sports.io/football/teams/%s.png"},"venue":{"city":%q}}`,
			t[0], t[1], t[0], t[2])
	}
	return fmt.Sprintf(`{"get":"teams","errors":[],"results":%d,"response":[%s]}`, len(teams), items)
}

// FootballErrorBody renders the 200-with-errors envelope api-sports uses
// for authentication and plan failures.
func FootballErrorBody(msg string) string {
	return fmt.Sprintf(`{"get":"fixtures","errors":{"token":%q},"results":0,"response":[]}`, msg)
}

// AmadeusTokenHandler issues a fixed bearer token.
func AmadeusTokenHandler(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"type":"amadeusOAuth2Token","access_token":%q,"token_type":"Bearer","expires_in":1799}`, token)
	}
}

// FlightOffersBody renders an Amadeus flight-offers response with the given
// grand totals (as strings, the way Amadeus sends them).
func FlightOffersBody(totals ...string) string {
	items := ""
	for i, total := range totals {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"type":"flight-offer","id":"%d","price":{"currency":"EUR","total":%q,"grandTotal":%q}}`, i+1, total, total)
	}
	return fmt.Sprintf(`{"meta":{"count":%d},"data":[%s]}`, len(totals), items)
}

// BookingLocationsBody renders a Booking locations response.
func BookingLocationsBody(destID, destType string) string {
	return fmt.Sprintf(`[{"dest_id":%q,"dest_type":%q,"label":"test"}]`, destID, destType)
}

// BookingSearchBody renders a Booking search response with one hotel.
func BookingSearchBody(price float64, url string) string {
	return fmt.Sprintf(`{"result":[{"hotel_id":1,"hotel_name":"Hotel Test","min_total_price":%g,"currencycode":"EUR","url":%q}]}`, price, url)
}
