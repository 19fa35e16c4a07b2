package privacy

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upper(d Detection, original string) (string, error) {
	return "<" + d.Type + ":" + strings.ToUpper(original) + ">", nil
}

func TestAnonymize(t *testing.T) {
	t.Run("no detections", func(t *testing.T) {
		out, applied, err := Anonymize("hello world", nil, upper)
		require.NoError(t, err)
		assert.Equal(t, "hello world", out)
		assert.Empty(t, applied)
	})

	t.Run("replaces spans", func(t *testing.T) {
		text := "hi bob and amy"
		dets := []Detection{
			{Type: "A", Start: 3, End: 6, Score: 0.9},
			{Type: "B", Start: 11, End: 14, Score: 0.8},
		}
		out, applied, err := Anonymize(text, dets, upper)
		require.NoError(t, err)
		assert.Equal(t, "hi <A:BOB> and <B:AMY>", out)
		assert.Equal(t, []int{0, 1}, applied)
	})

	t.Run("skips overlapping candidates", func(t *testing.T) {
		text := "0123456789"
		dets := []Detection{
			{Type: "WIDE", Start: 2, End: 8},
			{Type: "INNER", Start: 4, End: 6},
			{Type: "TAIL", Start: 7, End: 10},
		}
		out, applied, err := Anonymize(text, dets, upper)
		require.NoError(t, err)
		assert.Equal(t, "01<WIDE:234567>89", out)
		assert.Equal(t, []int{0}, applied)
	})

	t.Run("unsorted input keeps detection order in result", func(t *testing.T) {
		text := "aa bb"
		dets := []Detection{
			{Type: "SECOND", Start: 3, End: 5},
			{Type: "FIRST", Start: 0, End: 2},
		}
		out, applied, err := Anonymize(text, dets, upper)
		require.NoError(t, err)
		assert.Equal(t, "<FIRST:AA> <SECOND:BB>", out)
		assert.Equal(t, []int{0, 1}, applied)
	})

	t.Run("operator error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := Anonymize("abc", []Detection{{Type: "X", Start: 0, End: 1}}, func(Detection, string) (string, error) {
			return "", boom
		})
		assert.ErrorIs(t, err, boom)
	})
}
