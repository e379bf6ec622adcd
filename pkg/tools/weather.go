package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-assistant/internal/httpc"
)

// DefaultCity is used when no city is named.
const DefaultCity = "London"

// The forecast endpoint returns 3-hour slots, at most 40 of them.
const (
	slotsPerDay     = 8
	maxForecastDays = 5
)

var errBadWeatherData = errors.New("unexpected weather response")

type weatherTool struct {
	key     string
	baseURL string
	client  *http.Client
}

type owmCondition struct {
	Description string `json:"description"`
}

type owmMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Humidity  int     `json:"humidity"`
	Pressure  int     `json:"pressure"`
}

type owmCurrent struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main    owmMain        `json:"main"`
	Weather []owmCondition `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type owmForecast struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []struct {
		Dt      int64          `json:"dt"`
		Main    owmMain        `json:"main"`
		Weather []owmCondition `json:"weather"`
	} `json:"list"`
}

func (w *weatherTool) current(ctx context.Context, args Args) (string, error) {
	if w.key == "" {
		return "Weather API key not configured. Set OPENWEATHER_API_KEY environment variable.", nil
	}

	location := args.String("city", DefaultCity)
	if country := args.String("country", ""); country != "" {
		location += "," + country
	}

	var data owmCurrent
	if err := w.get(ctx, "/weather", url.Values{"q": {location}}, &data); err != nil {
		return "Weather API error: " + err.Error(), nil
	}
	if len(data.Weather) == 0 {
		return "Weather data parsing error: " + errBadWeatherData.Error(), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current weather in %s, %s:\n", data.Name, data.Sys.Country)
	fmt.Fprintf(&b, "🌡️ Temperature: %s°C (feels like %s°C)\n", formatNum(data.Main.Temp), formatNum(data.Main.FeelsLike))
	fmt.Fprintf(&b, "🌤️ Conditions: %s\n", titleWords(data.Weather[0].Description))
	fmt.Fprintf(&b, "💧 Humidity: %d%%\n", data.Main.Humidity)
	fmt.Fprintf(&b, "🌪️ Wind: %s m/s\n", formatNum(data.Wind.Speed))
	fmt.Fprintf(&b, "📊 Pressure: %d hPa", data.Main.Pressure)
	return b.String(), nil
}

func (w *weatherTool) forecast(ctx context.Context, args Args) (string, error) {
	if w.key == "" {
		return "Weather API key not configured.", nil
	}

	city := args.String("city", DefaultCity)
	days := min(max(args.Int("days", 3), 1), maxForecastDays)

	var data owmForecast
	q := url.Values{"q": {city}, "cnt": {strconv.Itoa(days * slotsPerDay)}}
	if err := w.get(ctx, "/forecast", q, &data); err != nil {
		return "Weather forecast error: " + err.Error(), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 %d-day forecast for %s:\n\n", days, data.City.Name)

	var lastDay string
	for i := 0; i < len(data.List) && i < days*slotsPerDay; i += slotsPerDay {
		item := data.List[i]
		date := time.Unix(item.Dt, 0)
		day := date.Format(time.DateOnly)
		if day == lastDay {
			continue
		}
		lastDay = day

		desc := ""
		if len(item.Weather) > 0 {
			desc = titleWords(item.Weather[0].Description)
		}
		fmt.Fprintf(&b, "📆 %s:\n", date.Format("Monday, January 02"))
		fmt.Fprintf(&b, "   🌡️ %s°C - %s\n", formatNum(item.Main.Temp), desc)
		fmt.Fprintf(&b, "   💧 Humidity: %d%%\n\n", item.Main.Humidity)
	}
	return b.String(), nil
}

func (w *weatherTool) get(ctx context.Context, path string, q url.Values, v any) error {
	q.Set("appid", w.key)
	q.Set("units", "metric")
	return httpc.GetJSON(ctx, w.client, strings.TrimRight(w.baseURL, "/")+path, q, v)
}

// formatNum formats a measurement the shortest way that round-trips.
func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
