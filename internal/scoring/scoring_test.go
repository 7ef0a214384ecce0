package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentLoaded(t *testing.T) {
	require.Len(t, TeremokQuestions(), 8)
	require.Len(t, FormulaQuestions(), 18)
	require.Len(t, TypeCatalog(), 6)

	for _, q := range TeremokQuestions() {
		require.NotEmpty(t, q.Options, "question %s has no options", q.ID)
		for _, opt := range q.Options {
			require.NotEmpty(t, opt.Votes, "option %s/%s has no votes", q.ID, opt.ID)
			for typ := range opt.Votes {
				assert.Contains(t, TypeCatalog(), typ)
			}
		}
	}
	for _, q := range FormulaQuestions() {
		assert.Contains(t, formula.Dimensions, q.Dimension)
	}
}

func TestCalculateTeremok(t *testing.T) {
	t.Run("wolf-leaning answers", func(t *testing.T) {
		res, err := CalculateTeremok(map[string]string{
			"q1": "a", // wolf 2, hare 1
			"q2": "c", // wolf 2
			"q6": "b", // wolf 2, hare 1
			"q7": "b", // wolf 2
		})
		require.NoError(t, err)
		assert.Equal(t, "wolf", res.Type)
		assert.Equal(t, float64(8), res.Scores["wolf"])
		assert.Equal(t, float64(2), res.Scores["hare"])
		assert.Equal(t, "Волчок-серый бочок", res.Info.Title)
	})

	t.Run("unknown ids skipped", func(t *testing.T) {
		res, err := CalculateTeremok(map[string]string{
			"q3":  "a", // mouse 2, bear 1
			"q99": "a",
			"q4":  "zz",
			"q5":  "a", // mouse 2
		})
		require.NoError(t, err)
		assert.Equal(t, "mouse", res.Type)
	})

	t.Run("empty answers rejected", func(t *testing.T) {
		_, err := CalculateTeremok(nil)
		require.Error(t, err)
	})

	t.Run("nothing matched rejected", func(t *testing.T) {
		_, err := CalculateTeremok(map[string]string{"q99": "a"})
		require.Error(t, err)
	})
}

func TestCalculateFormula(t *testing.T) {
	t.Run("dominant dimension normalized", func(t *testing.T) {
		res, err := CalculateFormula(map[string]int{
			"ft1": 5, "ft5": 5, "ft9": 5, // rezultatnost avg 5 -> 100
			"ft2": 3, "ft6": 3, // processnost avg 3 -> 50
			"ft3": 1, // statusnost -> 0
		})
		require.NoError(t, err)
		assert.Equal(t, "rezultatnost", res.Type)
		assert.Equal(t, "Команда-Результатники", res.PrimaryName)
		assert.InDelta(t, 100, res.Scores["rezultatnost"], 0.001)
		assert.InDelta(t, 50, res.Scores["processnost"], 0.001)
		assert.InDelta(t, 0, res.Scores["statusnost"], 0.001)
		assert.InDelta(t, 0, res.Scores["systemnost"], 0.001)
		assert.NotEmpty(t, res.Interpretation.Recommendations)
	})

	t.Run("out of scale rejected", func(t *testing.T) {
		_, err := CalculateFormula(map[string]int{"ft1": 6})
		require.Error(t, err)

		_, err = CalculateFormula(map[string]int{"ft1": 0})
		require.Error(t, err)
	})

	t.Run("empty answers rejected", func(t *testing.T) {
		_, err := CalculateFormula(nil)
		require.Error(t, err)
	})
}
