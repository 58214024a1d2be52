package discover

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueries_KeywordMajorOrder(t *testing.T) {
	got := Queries([]string{"java", "python"}, []string{"junior", "senior"})
	require.Equal(t, []string{
		"java junior",
		"java senior",
		"python junior",
		"python senior",
	}, got)
}

func TestQueries_NoLevels(t *testing.T) {
	got := Queries([]string{"go"}, nil)
	require.Equal(t, []string{"go"}, got)
}

func TestQueries_TrimsBlanks(t *testing.T) {
	got := Queries([]string{"java"}, []string{""})
	require.Equal(t, []string{"java"}, got)
}
