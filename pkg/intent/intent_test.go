package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-assistant/pkg/intent"
)

func TestClassify(t *testing.T) {
	c := intent.Default()

	tests := []struct {
		text string
		want intent.Label
	}{
		{"What's the weather in Paris?", intent.Weather},
		{"Calculate 25 * 4 + 10", intent.Calculator},
		{"what do you see right now", intent.Vision},
		{"Take a PHOTO of me", intent.Vision},
		{"search for golang generics", intent.Search},
		{"tell me about the Roman empire", intent.Search},
		{"give me the latest headlines", intent.News},
		{"what time is it", intent.Time},
		{"how is my CPU doing", intent.System},
		{"list files in the project", intent.Files},
		{"12 / 4", intent.Calculator},
		{"hello there", intent.None},
		{"", intent.None},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := c.Classify(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != intent.None, ok)
		})
	}
}

func TestClassifyDeclarationOrderWins(t *testing.T) {
	c := intent.Default()

	// Matches weather ("temperature") and calculator (digits with an operator).
	got, _ := c.Classify("temperature 20 + 5")
	assert.Equal(t, intent.Weather, got)

	// Matches vision ("camera") and time ("time").
	got, _ = c.Classify("what time does the camera say")
	assert.Equal(t, intent.Vision, got)

	reordered, err := intent.NewClassifier([]intent.Rule{
		{Label: intent.Calculator, Patterns: []string{`\d+.*[\+\-\*\/].*\d+`}},
		{Label: intent.Weather, Patterns: []string{`temperature`}},
	})
	require.NoError(t, err)
	got, _ = reordered.Classify("temperature 20 + 5")
	assert.Equal(t, intent.Calculator, got)
}

func TestNewClassifierErrors(t *testing.T) {
	_, err := intent.NewClassifier([]intent.Rule{{Label: "x", Patterns: []string{"("}}})
	assert.Error(t, err)

	_, err = intent.NewClassifier([]intent.Rule{{Label: "", Patterns: []string{"a"}}})
	assert.Error(t, err)

	_, err = intent.NewClassifier([]intent.Rule{
		{Label: "a", Patterns: []string{"a"}},
		{Label: "a", Patterns: []string{"b"}},
	})
	assert.Error(t, err)
}

func TestLabelsOrder(t *testing.T) {
	want := []intent.Label{
		intent.Vision, intent.Weather, intent.Search, intent.News,
		intent.Time, intent.System, intent.Calculator, intent.Files,
	}
	assert.Equal(t, want, intent.Default().Labels())
}
