package noaa

import (
	"fmt"
	"net/url"
	"time"
)

// DefaultBaseURL is the public CO-OPS data getter endpoint.
const DefaultBaseURL = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"

const dateLayout = "20060102"

// Query holds everything the data getter needs besides the product.
type Query struct {
	BaseURL  string
	Station  string
	Begin    time.Time
	End      time.Time
	Datum    string
	TimeZone string
	Units    string
}

// URL renders the request URL for a product. The format is always json.
func (q Query) URL(product string) (string, error) {
	base := q.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	values := u.Query()
	values.Set("begin_date", q.Begin.Format(dateLayout))
	values.Set("end_date", q.End.Format(dateLayout))
	values.Set("station", q.Station)
	values.Set("product", product)
	values.Set("datum", q.Datum)
	values.Set("time_zone", q.TimeZone)
	values.Set("units", q.Units)
	values.Set("format", "json")
	u.RawQuery = values.Encode()

	return u.String(), nil
}
