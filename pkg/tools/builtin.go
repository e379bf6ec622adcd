package tools

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-assistant/pkg/inference"
	"github.com/teslashibe/go-assistant/pkg/notify"
)

// FrameSource yields JPEG frames for the vision tool.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Deps are the collaborators of the built-in tools. Every field is
// optional; tools with a missing dependency report it in their output.
type Deps struct {
	Camera      FrameSource
	Vision      inference.Provider
	VisionModel string

	// Searcher answers queries the instant-answer API has nothing for.
	Searcher inference.Searcher

	Notifier  notify.Notifier
	Reminders *Reminders

	OpenWeatherKey string
	WeatherURL     string
	SearchURL      string
	HTTPClient     *http.Client

	// FilesRoot anchors relative paths of the file tools.
	FilesRoot string

	Now    func() time.Time
	Logger *slog.Logger
}

// Default endpoints.
const (
	DefaultWeatherURL = "https://api.openweathermap.org/data/2.5"
	DefaultSearchURL  = "https://api.duckduckgo.com/"
)

// NewDefault builds the registry of built-in tools.
func NewDefault(d Deps) (*Registry, error) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.WeatherURL == "" {
		d.WeatherURL = DefaultWeatherURL
	}
	if d.SearchURL == "" {
		d.SearchURL = DefaultSearchURL
	}
	if d.Reminders == nil {
		d.Reminders = NewReminders(d.Notifier)
	}

	weather := &weatherTool{key: d.OpenWeatherKey, baseURL: d.WeatherURL, client: d.HTTPClient}
	search := &searchTool{baseURL: d.SearchURL, client: d.HTTPClient, grounded: d.Searcher}
	files := &fileTool{root: d.FilesRoot}

	r, err := NewRegistry(
		Tool{Name: "vision", Description: "Analyze images from webcam with AI vision",
			Params:  []Param{str("query", "What to look for or ask about the webcam image")},
			Handler: (&visionTool{camera: d.Camera, provider: d.Vision, model: d.VisionModel}).handle},
		Tool{Name: "weather", Description: "Get current weather and forecasts",
			Params:  []Param{str("city", "City name, London if omitted"), str("country", "Optional country code")},
			Handler: weather.current},
		Tool{Name: "forecast", Description: "Get a multi-day weather forecast", Hidden: true,
			Params:  []Param{str("city", "City name"), num("days", "Number of days, 1 to 5")},
			Handler: weather.forecast},
		Tool{Name: "search", Description: "Search the internet for information",
			Params:  []Param{required(str("query", "Search terms"))},
			Handler: search.handle},
		Tool{Name: "news", Description: "Get latest news headlines",
			Params:  []Param{str("topic", "News topic, technology if omitted")},
			Handler: search.news},
		Tool{Name: "system", Description: "Get system information and current time",
			Handler: (&systemTool{sampler: gopsutilSampler{}, now: d.Now}).handle},
		Tool{Name: "time", Description: "Get the current date and time", Hidden: true, Handler: clock(d.Now)},
		Tool{Name: "calculator", Description: "Perform mathematical calculations",
			Params:  []Param{required(str("expression", "Arithmetic expression, e.g. 2+2*5"))},
			Handler: calculate},
		Tool{Name: "files", Description: "List and read files",
			Params:  []Param{str("directory", "Directory to list, the current folder if omitted")},
			Handler: files.list},
		Tool{Name: "read_file", Description: "Read the beginning of a text file", Hidden: true,
			Params:  []Param{required(str("filename", "Path of the file")), num("max_chars", "Characters to read, 1000 if omitted")},
			Handler: files.read},
		Tool{Name: "reminder", Description: "Set simple reminders",
			Params:  []Param{required(str("message", "What to be reminded of")), num("minutes", "Minutes from now, 5 if omitted")},
			Handler: reminder(d.Reminders, d.Now)},
	)
	if err != nil {
		return nil, err
	}
	if d.Logger != nil {
		r = r.WithLogger(d.Logger)
	}
	return r, nil
}
