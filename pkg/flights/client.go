// Package flights quotes return flights from the Amadeus flight-offers API,
// falling back to a flat estimate when no live offer is available.
package flights

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Sternrassler/tripcost/pkg/logging"
	"github.com/Sternrassler/tripcost/pkg/provider"
	"github.com/Sternrassler/tripcost/pkg/upstream"
)

const (
	// DefaultBaseURL is the Amadeus self-service test environment.
	DefaultBaseURL = "https://test.api.amadeus.com"

	// EstimatePrice is quoted when no live offer is available.
	EstimatePrice = 200.0

	tokenPath  = "/v1/security/oauth2/token"
	offersPath = "/v2/shopping/flight-offers"

	defaultOrigin      = "LON"
	defaultDestination = "MAD"

	queryDateLayout = "2006-01-02"
	linkDateLayout  = "060102"
)

var airports = map[string]string{
	"London":     "LON",
	"Madrid":     "MAD",
	"Barcelona":  "BCN",
	"Rome":       "ROM",
	"Milan":      "MIL",
	"Munich":     "MUC",
	"Berlin":     "BER",
	"Paris":      "PAR",
	"Manchester": "MAN",
	"Liverpool":  "LPL",
}

// AirportCode maps a city to its IATA city code, or fallback when unknown.
func AirportCode(city, fallback string) string {
	if code, ok := airports[city]; ok {
		return code
	}
	return fallback
}

// Config configures a Client.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Retry overrides the upstream retry policy. Optional.
	Retry upstream.RetryPolicy
}

// Client implements provider.Flights.
type Client struct {
	http   *upstream.Client
	logger zerolog.Logger
}

var _ provider.Flights = (*Client)(nil)

// New creates a flight client. Without credentials every quote is the
// estimate and no request is made.
func New(cfg Config) (*Client, error) {
	c := &Client{logger: logging.NewLogger("flights")}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		c.logger.Info().Msg("Amadeus credentials not configured, using estimates")
		return c, nil
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	cc := clientcredentials.Config{
		ClientID:     cfg.APIKey,
		ClientSecret: cfg.APISecret,
		TokenURL:     baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// The token endpoint gets the same timeout as the offers endpoint.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = cfg.Timeout

	ucfg := upstream.DefaultConfig("amadeus", baseURL, cfg.UserAgent)
	ucfg.HTTPClient = httpClient
	if cfg.Retry != nil {
		ucfg.Retry = cfg.Retry
	}
	u, err := upstream.New(ucfg)
	if err != nil {
		return nil, fmt.Errorf("flights client: %w", err)
	}
	c.http = u
	return c, nil
}

// FlightPrice quotes the cheapest return flight departing the day before
// date and returning the day after. It never fails: any problem yields the
// estimate.
func (c *Client) FlightPrice(ctx context.Context, origin, destination string, date time.Time) (*provider.Quote, error) {
	if c.http == nil {
		return Estimate(), nil
	}

	from := AirportCode(origin, defaultOrigin)
	to := AirportCode(destination, defaultDestination)
	depart := date.AddDate(0, 0, -1)
	ret := date.AddDate(0, 0, 1)

	price, err := c.cheapestOffer(ctx, from, to, depart, ret)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("origin", from).
			Str("destination", to).
			Msg("Flight offer lookup failed, using estimate")
		return Estimate(), nil
	}
	if price <= 0 {
		c.logger.Debug().Str("origin", from).Str("destination", to).Msg("No flight offers, using estimate")
		return Estimate(), nil
	}

	return &provider.Quote{
		Price: price,
		Link:  SearchLink(from, to, depart, ret),
	}, nil
}

func (c *Client) cheapestOffer(ctx context.Context, from, to string, depart, ret time.Time) (float64, error) {
	body, err := c.http.GetJSON(ctx, offersPath, url.Values{
		"originLocationCode":      {from},
		"destinationLocationCode": {to},
		"departureDate":           {depart.Format(queryDateLayout)},
		"returnDate":              {ret.Format(queryDateLayout)},
		"adults":                  {"1"},
		"currencyCode":            {"EUR"},
	})
	if err != nil {
		return 0, err
	}
	if !gjson.ValidBytes(body) {
		return 0, c.http.DecodeError("invalid json", nil)
	}

	var cheapest float64
	for _, total := range gjson.GetBytes(body, "data.#.price.total").Array() {
		p := total.Float()
		if p > 0 && (cheapest == 0 || p < cheapest) {
			cheapest = p
		}
	}
	return cheapest, nil
}

// Estimate is the quote used when no live price is available.
func Estimate() *provider.Quote {
	return &provider.Quote{Price: EstimatePrice, Estimated: true}
}

// SearchLink builds a flight search deep link for a return trip.
func SearchLink(from, to string, depart, ret time.Time) string {
	return fmt.Sprintf("https://www.skyscanner.net/transport/flights/%s/%s/%s/%s/",
		strings.ToLower(from), strings.ToLower(to),
		depart.Format(linkDateLayout), ret.Format(linkDateLayout))
}
