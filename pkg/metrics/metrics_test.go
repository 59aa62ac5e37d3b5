package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRound3RoundsToThreeDecimals(t *testing.T) {
	require.Equal(t, 1.235, round3(1.23456))
}

func TestAddBlockStatAccumulatesSameType(t *testing.T) {
	b := NewBuilder("goldmark")
	b.AddBlockStat("paragraph", 10, 1.0)
	b.AddBlockStat("paragraph", 20, 2.0)
	tx := b.Build()
	require.Len(t, tx.Blocks, 1)
	require.Equal(t, 2, tx.Blocks[0].Count)
	require.Equal(t, 30, tx.Blocks[0].TotalBytes)
	require.Equal(t, 3.0, tx.Blocks[0].EnrichMS)
}

func TestAddHighlighterMSAccumulatesPerLanguage(t *testing.T) {
	b := NewBuilder("goldmark")
	b.AddHighlighterMS("go", 1.5)
	b.AddHighlighterMS("go", 2.5)
	b.AddHighlighterMS("python", 0.5)
	tx := b.Build()
	require.Equal(t, 4.0, tx.HighlighterMS["go"])
	require.Equal(t, 0.5, tx.HighlighterMS["python"])
}
