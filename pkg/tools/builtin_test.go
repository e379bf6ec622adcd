package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-assistant/pkg/inference"
)

var fixedNow = time.Date(2024, 3, 8, 15, 4, 5, 0, time.Local)

func now() time.Time { return fixedNow }

type fakeCamera struct {
	frame []byte
	err   error
}

func (c fakeCamera) Capture(context.Context) ([]byte, error) { return c.frame, c.err }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, title+"|"+message)
	return nil
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewDefaultTools(t *testing.T) {
	r, err := NewDefault(Deps{Now: now})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"vision", "weather", "forecast", "search", "news", "system", "time",
		"calculator", "files", "read_file", "reminder",
	}, r.Names())
	assert.Equal(t,
		"Unknown tool 'x'. Available tools: vision, weather, search, news, system, calculator, files, reminder",
		r.Invoke(context.Background(), "x", nil))

	offered := r.Tools()
	require.Len(t, offered, 11)
	calc := offered[7]
	assert.Equal(t, "calculator", calc.Name)
	assert.Equal(t, []string{"expression"}, calc.Parameters["required"])
	reminder := offered[10].Parameters["properties"].(map[string]any)
	assert.Equal(t, "integer", reminder["minutes"].(map[string]any)["type"])
}

func TestVisionTool(t *testing.T) {
	ctx := context.Background()

	t.Run("analyzes captured frame", func(t *testing.T) {
		mock := inference.NewMock()
		var got *inference.VisionRequest
		mock.VisionFunc = func(_ context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
			got = req
			return &inference.VisionResponse{Content: "A cat on a desk."}, nil
		}
		v := &visionTool{camera: fakeCamera{frame: []byte{0xff, 0xd8}}, provider: mock, model: "vision-model"}

		out, err := v.handle(ctx, Args{"query": "how many cats?"})
		require.NoError(t, err)
		assert.Equal(t, "A cat on a desk.", out)
		assert.Equal(t, "how many cats?", got.Prompt)
		assert.Equal(t, "vision-model", got.Model)
		assert.Equal(t, []byte{0xff, 0xd8}, got.JPEG)
	})

	t.Run("default query", func(t *testing.T) {
		mock := inference.NewMock()
		var prompt string
		mock.VisionFunc = func(_ context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
			prompt = req.Prompt
			return &inference.VisionResponse{Content: "ok"}, nil
		}
		v := &visionTool{camera: fakeCamera{frame: []byte{1}}, provider: mock}
		_, _ = v.handle(ctx, Args{})
		assert.Equal(t, DefaultVisionQuery, prompt)
	})

	t.Run("empty query", func(t *testing.T) {
		v := &visionTool{camera: fakeCamera{frame: []byte{1}}, provider: inference.NewMock()}
		out, _ := v.handle(ctx, Args{"query": ""})
		assert.Equal(t, "Error: both 'query' and image must be provided.", out)
	})

	t.Run("capture failure", func(t *testing.T) {
		v := &visionTool{camera: fakeCamera{err: errors.New("no camera")}, provider: inference.NewMock()}
		out, _ := v.handle(ctx, Args{})
		assert.Equal(t, "Vision analysis error: no camera", out)
	})

	t.Run("model failure", func(t *testing.T) {
		v := &visionTool{camera: fakeCamera{frame: []byte{1}}, provider: inference.WithError(errors.New("rate limited"))}
		out, _ := v.handle(ctx, Args{})
		assert.Equal(t, "Vision analysis error: rate limited", out)
	})

	t.Run("not configured", func(t *testing.T) {
		out, _ := (&visionTool{}).handle(ctx, Args{})
		assert.True(t, strings.HasPrefix(out, "Vision analysis error: "))
	})
}

func TestWeatherTool(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("appid") != "k" || q.Get("units") != "metric" {
			http.Error(w, `{"message":"Invalid API key"}`, http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/weather":
			if q.Get("q") == "Atlantis" {
				http.Error(w, `{"message":"city not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, map[string]any{
				"name": "Paris",
				"sys":  map[string]any{"country": "FR"},
				"main": map[string]any{"temp": 12.5, "feels_like": 11, "humidity": 80, "pressure": 1012},
				"weather": []map[string]any{
					{"description": "light rain"},
				},
				"wind": map[string]any{"speed": 4.1},
			})
		case "/forecast":
			assert.Equal(t, "16", q.Get("cnt"))
			var list []map[string]any
			for i := 0; i < 16; i++ {
				dt := time.Date(2024, 3, 8, 0, 0, 0, 0, time.Local).Add(time.Duration(i) * 3 * time.Hour)
				list = append(list, map[string]any{
					"dt":      dt.Unix(),
					"main":    map[string]any{"temp": 10 + i, "humidity": 70},
					"weather": []map[string]any{{"description": "clear sky"}},
				})
			}
			writeJSON(w, map[string]any{"city": map[string]any{"name": "Paris"}, "list": list})
		}
	}))
	defer srv.Close()

	w := &weatherTool{key: "k", baseURL: srv.URL}

	t.Run("current", func(t *testing.T) {
		out, err := w.current(ctx, Args{"city": "Paris"})
		require.NoError(t, err)
		assert.Equal(t, "Current weather in Paris, FR:\n"+
			"🌡️ Temperature: 12.5°C (feels like 11°C)\n"+
			"🌤️ Conditions: Light Rain\n"+
			"💧 Humidity: 80%\n"+
			"🌪️ Wind: 4.1 m/s\n"+
			"📊 Pressure: 1012 hPa", out)
	})

	t.Run("api error", func(t *testing.T) {
		out, _ := w.current(ctx, Args{"city": "Atlantis"})
		assert.True(t, strings.HasPrefix(out, "Weather API error: 404"), out)
	})

	t.Run("forecast", func(t *testing.T) {
		out, err := w.forecast(ctx, Args{"city": "Paris", "days": "2"})
		require.NoError(t, err)
		assert.Equal(t, "📅 2-day forecast for Paris:\n\n"+
			"📆 Friday, March 08:\n   🌡️ 10°C - Clear Sky\n   💧 Humidity: 70%\n\n"+
			"📆 Saturday, March 09:\n   🌡️ 18°C - Clear Sky\n   💧 Humidity: 70%\n\n", out)
	})

	t.Run("missing key", func(t *testing.T) {
		nokey := &weatherTool{baseURL: srv.URL}
		out, _ := nokey.current(ctx, Args{})
		assert.Equal(t, "Weather API key not configured. Set OPENWEATHER_API_KEY environment variable.", out)
		out, _ = nokey.forecast(ctx, Args{})
		assert.Equal(t, "Weather API key not configured.", out)
	})
}

func TestSearchTool(t *testing.T) {
	ctx := context.Background()

	var lastQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lastQuery = q.Get("q")
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("no_html"))
		assert.Equal(t, "1", q.Get("skip_disambig"))

		if strings.HasPrefix(lastQuery, "zzz") {
			writeJSON(w, map[string]any{"Answer": "", "Abstract": "", "RelatedTopics": []any{}})
			return
		}
		topics := []map[string]any{{"Name": "group", "Topics": []any{}}}
		for i := 1; i <= 6; i++ {
			topics = append(topics, map[string]any{"Text": fmt.Sprintf("topic %d", i)})
		}
		writeJSON(w, map[string]any{
			"Answer":        "42",
			"Abstract":      "Go is a programming language.",
			"RelatedTopics": topics,
		})
	}))
	defer srv.Close()

	s := &searchTool{baseURL: srv.URL}

	t.Run("formats results", func(t *testing.T) {
		out, err := s.handle(ctx, Args{"query": "golang"})
		require.NoError(t, err)
		assert.Equal(t, "🔍 Search results for 'golang':\n\n"+
			"💡 Quick Answer: 42\n\n"+
			"📝 Summary: Go is a programming language.\n\n"+
			"🔗 Related Topics:\n\n"+
			"   • topic 1\n\n   • topic 2\n\n   • topic 3\n\n   • topic 4", out)
	})

	t.Run("missing query", func(t *testing.T) {
		out, _ := s.handle(ctx, Args{})
		assert.Equal(t, "Please provide a search query", out)
	})

	t.Run("no results", func(t *testing.T) {
		out, _ := s.handle(ctx, Args{"query": "zzz"})
		assert.Equal(t, "No specific results found for 'zzz'. Try rephrasing your search.", out)
	})

	t.Run("grounded fallback", func(t *testing.T) {
		mock := inference.NewMock()
		mock.SearchFunc = func(context.Context, string) (string, error) { return "Fresh answer.", nil }
		grounded := &searchTool{baseURL: srv.URL, grounded: mock}

		out, _ := grounded.handle(ctx, Args{"query": "zzz latest"})
		assert.Equal(t, "🔍 Search results for 'zzz latest':\n\n🌐 Web answer: Fresh answer.", out)
	})

	t.Run("news", func(t *testing.T) {
		out, _ := s.news(ctx, Args{})
		assert.Equal(t, "technology news today", lastQuery)
		assert.Contains(t, out, "   • topic 2")
		assert.NotContains(t, out, "topic 3")

		_, _ = s.news(ctx, Args{"topic": "sports"})
		assert.Equal(t, "sports news today", lastQuery)
	})

	t.Run("transport error", func(t *testing.T) {
		bad := &searchTool{baseURL: "http://127.0.0.1:1"}
		out, _ := bad.handle(ctx, Args{"query": "x"})
		assert.True(t, strings.HasPrefix(out, "Search error: "), out)
	})
}

type fakeSampler struct {
	snap SystemSnapshot
	err  error
}

func (p fakeSampler) Snapshot(context.Context) (SystemSnapshot, error) { return p.snap, p.err }

func TestSystemAndClock(t *testing.T) {
	ctx := context.Background()

	st := &systemTool{sampler: fakeSampler{snap: SystemSnapshot{
		OS: "Linux 6.1.0", CPU: "Test CPU", CPUPercent: 12.34, MemPercent: 50, DiskPercent: 71.26,
	}}, now: now}
	out, err := st.handle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "💻 System Information:\n"+
		"   OS: Linux 6.1.0\n"+
		"   CPU: Test CPU\n"+
		"   CPU Usage: 12.3%\n"+
		"   Memory: 50.0% used\n"+
		"   Disk: 71.3% used\n"+
		"   Current Time: 2024-03-08 15:04:05\n", out)

	st.sampler = fakeSampler{err: errors.New("permission denied")}
	out, _ = st.handle(ctx, nil)
	assert.Equal(t, "System info error: permission denied", out)

	out, _ = clock(now)(ctx, nil)
	assert.Equal(t, "🕐 Current time: Friday, March 08, 2024 at 03:04:05 PM", out)
}

func TestCalculator(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2 + 2 * 3", "🧮 2 + 2 * 3 = 8"},
		{"what is 10 / 4", "🧮 what is 10 / 4 = 2.5"},
		{"4/2", "🧮 4/2 = 2.0"},
		{"(1 + 2) * -3", "🧮 (1 + 2) * -3 = -9"},
		{"1/0", "Error: Division by zero"},
		{"abc", "Invalid mathematical expression"},
		{"", "Please provide a mathematical expression"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := calculate(context.Background(), Args{"expression": tt.expr})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	out, _ := calculate(context.Background(), Args{"expression": "2 +"})
	assert.True(t, strings.HasPrefix(out, "Calculation error: "), out)
}

func TestFileTools(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "long.txt"), []byte(strings.Repeat("é", 1500)), 0o644))

	f := &fileTool{root: root}

	t.Run("list", func(t *testing.T) {
		out, _ := f.list(ctx, Args{})
		assert.Equal(t, "📁 Files in '.':\n"+
			"   📄 a.txt (5 bytes)\n"+
			"   📂 docs/\n"+
			"   📄 long.txt (3000 bytes)\n", out)
	})

	t.Run("list overflow", func(t *testing.T) {
		dir := filepath.Join(root, "docs")
		for i := 0; i < 23; i++ {
			require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%02d", i)), nil, 0o644))
		}
		out, _ := f.list(ctx, Args{"directory": "docs"})
		assert.True(t, strings.HasSuffix(out, "   ... and 3 more files\n"), out)
		assert.Equal(t, 22, strings.Count(out, "\n"))
	})

	t.Run("list missing", func(t *testing.T) {
		out, _ := f.list(ctx, Args{"directory": "nope"})
		assert.True(t, strings.HasPrefix(out, "File listing error: "), out)
	})

	t.Run("read", func(t *testing.T) {
		out, _ := f.read(ctx, Args{"filename": "a.txt"})
		assert.Equal(t, "📄 Content of 'a.txt':\n\nhello", out)
	})

	t.Run("read truncates", func(t *testing.T) {
		out, _ := f.read(ctx, Args{"filename": "long.txt"})
		want := "📄 Content of 'long.txt':\n\n" + strings.Repeat("é", 1000) + "\n\n... (truncated to 1000 characters)"
		assert.Equal(t, want, out)
	})

	t.Run("read honours max_chars", func(t *testing.T) {
		out, _ := f.read(ctx, Args{"filename": "long.txt", "max_chars": "10"})
		want := "📄 Content of 'long.txt':\n\n" + strings.Repeat("é", 10) + "\n\n... (truncated to 10 characters)"
		assert.Equal(t, want, out)
	})

	t.Run("read requires name", func(t *testing.T) {
		out, _ := f.read(ctx, Args{})
		assert.Equal(t, "Please provide a filename", out)
	})
}

func TestReminder(t *testing.T) {
	n := &recordingNotifier{}
	r := NewReminders(n)
	defer r.Stop()

	out, err := reminder(r, now)(context.Background(), Args{"message": "stretch", "minutes": "10"})
	require.NoError(t, err)
	assert.Equal(t, "⏰ Reminder set for 03:14 PM: stretch", out)
	assert.Equal(t, 1, r.Pending())

	out, _ = reminder(r, now)(context.Background(), Args{"message": "now", "minutes": "0"})
	assert.Equal(t, "⏰ Reminder set for 03:04 PM: now", out)
	require.Eventually(t, func() bool { return len(n.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Reminder|now"}, n.messages())

	r.Stop()
	assert.Zero(t, r.Pending())
	r.Schedule(0, "late")
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, n.messages(), 1)
}
