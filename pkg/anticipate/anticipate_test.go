package anticipate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineAnticipationOpenAsterisk(t *testing.T) {
	r := Prepare("*foo", NewConfig(true))
	require.Equal(t, StatusParse, r.Kind)
	require.Equal(t, ParseAnticipated, r.ParseStatus)
	require.Equal(t, "*foo*", r.Content)
	require.Equal(t, "*", r.Appended)
}

func TestInlineAnticipationDisabledIsRaw(t *testing.T) {
	r := Prepare("*foo", Config{})
	require.Equal(t, StatusRaw, r.Kind)
	require.Equal(t, "incomplete-formatting", r.Reason)
}

func TestMathInlineRequiresExplicitFlag(t *testing.T) {
	r := Prepare("$x", NewConfig(true))
	require.Equal(t, StatusRaw, r.Kind)
	require.Equal(t, "incomplete-math", r.Reason)
}

func TestMathDisplayNewlineAlwaysRaw(t *testing.T) {
	cfg := Config{Inline: true, MathBlock: true}
	r := Prepare("$$x\nmore", cfg)
	require.Equal(t, StatusRaw, r.Kind)
	require.Equal(t, "incomplete-math", r.Reason)
}

func TestCompleteContentPassesThrough(t *testing.T) {
	r := Prepare("plain paragraph text", NewConfig(true))
	require.Equal(t, StatusParse, r.Kind)
	require.Equal(t, ParseComplete, r.ParseStatus)
	require.Equal(t, "plain paragraph text", r.Content)
}

func TestClosedStrikethroughIsComplete(t *testing.T) {
	r := Prepare("~~gone~~", Config{})
	require.Equal(t, StatusParse, r.Kind)
	require.Equal(t, ParseComplete, r.ParseStatus)
}
