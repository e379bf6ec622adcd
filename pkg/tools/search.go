package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-assistant/internal/httpc"
	"github.com/teslashibe/go-assistant/pkg/inference"
)

const (
	maxSearchResults = 5
	maxNewsResults   = 3
	defaultNewsTopic = "technology"
)

type searchTool struct {
	baseURL  string
	client   *http.Client
	grounded inference.Searcher
}

type ddgResponse struct {
	Answer        any        `json:"Answer"`
	Abstract      string     `json:"Abstract"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// ddgTopic is either a result (Text set) or a named group of results.
type ddgTopic struct {
	Text string `json:"Text"`
}

func (s *searchTool) handle(ctx context.Context, args Args) (string, error) {
	query := args.String("query", "")
	if query == "" {
		return "Please provide a search query", nil
	}
	return s.search(ctx, query, maxSearchResults), nil
}

func (s *searchTool) news(ctx context.Context, args Args) (string, error) {
	topic := args.String("topic", defaultNewsTopic)
	return s.search(ctx, topic+" news today", maxNewsResults), nil
}

func (s *searchTool) search(ctx context.Context, query string, limit int) string {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}

	var data ddgResponse
	if err := httpc.GetJSON(ctx, s.client, s.baseURL, params, &data); err != nil {
		return "Search error: " + err.Error()
	}

	var results []string
	if answer := answerText(data.Answer); answer != "" {
		results = append(results, "💡 Quick Answer: "+answer)
	}
	if data.Abstract != "" {
		results = append(results, "📝 Summary: "+data.Abstract)
	}
	if len(data.RelatedTopics) > 0 {
		results = append(results, "🔗 Related Topics:")
		for _, t := range data.RelatedTopics[:min(limit, len(data.RelatedTopics))] {
			if t.Text != "" {
				results = append(results, "   • "+t.Text)
			}
		}
	}

	if len(results) == 0 && s.grounded != nil {
		if answer, err := s.grounded.Search(ctx, query); err == nil && strings.TrimSpace(answer) != "" {
			results = append(results, "🌐 Web answer: "+strings.TrimSpace(answer))
		}
	}

	if len(results) == 0 {
		return fmt.Sprintf("No specific results found for '%s'. Try rephrasing your search.", query)
	}
	return fmt.Sprintf("🔍 Search results for '%s':\n\n", query) + strings.Join(results, "\n\n")
}

// answerText renders the instant answer, which is usually a string but
// may be a number for computed answers.
func answerText(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return a
	case float64:
		return formatNum(a)
	default:
		return ""
	}
}
