package intent

import (
	"regexp"
	"strings"
)

// Params are the tool arguments derived from an utterance. Raw keeps the
// original text for traceability.
type Params struct {
	Raw  string
	Args map[string]string
}

// Get returns the argument for key, or "".
func (p Params) Get(key string) string {
	return p.Args[key]
}

// Defaults for extracted arguments.
const (
	DefaultCity        = "London"
	DefaultVisionQuery = "What do you see in this image?"
	DefaultDirectory   = "."

	// minVisionQueryLen is the shortest leftover worth sending as a vision query.
	minVisionQueryLen = 5
)

var (
	cityRe     = regexp.MustCompile(`(?i)weather.*\bin\s+([a-zA-Z\s]+)`)
	forecastRe = regexp.MustCompile(`(?i)\bforecast\b`)
	daysRe     = regexp.MustCompile(`(?i)\b(\d{1,2})[\s-]*days?\b`)

	searchRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)search\s+(?:for\s+)?(.+)`),
		regexp.MustCompile(`(?i)look\s+up\s+(.+)`),
		regexp.MustCompile(`(?i)find\s+out\s+about\s+(.+)`),
		regexp.MustCompile(`(?i)what\s+is\s+(.+)`),
		regexp.MustCompile(`(?i)tell\s+me\s+about\s+(.+)`),
	}

	mathRunRe = regexp.MustCompile(`[\d+\-*/.()\s]+`)
	digitRe   = regexp.MustCompile(`\d`)

	visionPrefixes = []string{
		"can you", "could you", "would you", "please", "hey", "okay", "ok",
		"what do you see", "tell me",
	}

	newsAboutRe = regexp.MustCompile(`(?i)news\s+(?:about|on|regarding)\s+(.+)`)
	newsWordRe  = regexp.MustCompile(`(?i)\b([a-z]+)\s+news\b`)
	newsNoise   = map[string]bool{
		"latest": true, "the": true, "any": true, "some": true, "recent": true,
		"breaking": true, "top": true, "current": true, "new": true, "me": true,
		"today": true, "todays": true, "s": true,
	}

	filesInRe  = regexp.MustCompile(`(?i)files\s+(?:in|inside|under|from)\s+(?:the\s+)?(?:folder\s+|directory\s+)?([\w./~-]+)`)
	folderOfRe = regexp.MustCompile(`(?i)(?:in|of)\s+(?:the\s+)?(?:folder|directory)\s+([\w./~-]+)`)

	cityFiller = []string{"right now", "today", "tonight", "tomorrow", "now", "please", "currently", "like"}
)

// ExtractParams derives tool arguments for label from text.
func ExtractParams(text string, label Label) Params {
	p := Params{Raw: text, Args: map[string]string{}}
	trimmed := strings.TrimSpace(text)

	switch label {
	case Weather:
		p.Args["city"] = DefaultCity
		if m := cityRe.FindStringSubmatch(trimmed); m != nil {
			if city := trimCity(m[1]); city != "" {
				p.Args["city"] = city
			}
		}
		if forecastRe.MatchString(trimmed) {
			p.Args["days"] = "3"
			if m := daysRe.FindStringSubmatch(trimmed); m != nil {
				p.Args["days"] = m[1]
			}
		}

	case Search:
		p.Args["query"] = cleanQuery(trimmed)
		for _, re := range searchRes {
			if m := re.FindStringSubmatch(trimmed); m != nil {
				if q := cleanQuery(m[1]); q != "" {
					p.Args["query"] = q
				}
				break
			}
		}

	case Calculator:
		p.Args["expression"] = longestMathRun(trimmed)

	case Vision:
		p.Args["query"] = DefaultVisionQuery
		if rest := stripVisionPrefixes(trimmed); len(rest) > minVisionQueryLen {
			p.Args["query"] = rest
		}

	case News:
		if topic := newsTopic(trimmed); topic != "" {
			p.Args["topic"] = topic
		}

	case Files:
		p.Args["directory"] = DefaultDirectory
		for _, re := range []*regexp.Regexp{filesInRe, folderOfRe} {
			if m := re.FindStringSubmatch(trimmed); m != nil {
				p.Args["directory"] = strings.TrimRight(m[1], ".?!")
				break
			}
		}
	}

	return p
}

// ToolFor returns the registry tool that serves label.
func ToolFor(label Label, p Params) string {
	if label == Weather && p.Get("days") != "" {
		return "forecast"
	}
	return string(label)
}

func trimCity(s string) string {
	words := strings.Fields(s)
	for trimmed := true; trimmed && len(words) > 0; {
		trimmed = false
		for _, f := range cityFiller {
			n := len(strings.Fields(f))
			if n <= len(words) && strings.EqualFold(strings.Join(words[len(words)-n:], " "), f) {
				words = words[:len(words)-n]
				trimmed = true
				break
			}
		}
	}
	return strings.Join(words, " ")
}

func cleanQuery(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "?.!"))
}

func longestMathRun(s string) string {
	best := ""
	for _, run := range mathRunRe.FindAllString(s, -1) {
		run = strings.TrimRight(strings.TrimSpace(run), ". ")
		if !digitRe.MatchString(run) {
			continue
		}
		if len(run) > len(best) {
			best = run
		}
	}
	if best == "" {
		return s
	}
	return best
}

func stripVisionPrefixes(s string) string {
	rest := strings.TrimSpace(s)
	for {
		lower := strings.ToLower(rest)
		stripped := false
		for _, prefix := range visionPrefixes {
			if strings.HasPrefix(lower, prefix) && wordEnds(lower, len(prefix)) {
				rest = strings.TrimLeft(rest[len(prefix):], " ,")
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.TrimSpace(strings.TrimRight(rest, "?.! "))
}

func wordEnds(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

func newsTopic(s string) string {
	if m := newsAboutRe.FindStringSubmatch(s); m != nil {
		return cleanQuery(m[1])
	}
	for _, m := range newsWordRe.FindAllStringSubmatch(s, -1) {
		if w := strings.ToLower(m[1]); !newsNoise[w] {
			return w
		}
	}
	return ""
}
