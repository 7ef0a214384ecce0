package scoring

import "github.com/rotisserie/eris"

// FormulaResult is the outcome of the formula RSP diagnostic.
type FormulaResult struct {
	Type           string             `json:"type"`
	PrimaryName    string             `json:"primary_name"`
	Scores         map[string]float64 `json:"scores"`
	Interpretation Interpretation     `json:"interpretation"`
}

// CalculateFormula averages Likert answers per dimension and normalizes
// each to 0-100. Answers map question id to a value on the 1-5 scale.
func CalculateFormula(answers map[string]int) (*FormulaResult, error) {
	if len(answers) == 0 {
		return nil, eris.New("scoring: no answers given")
	}

	sums := make(map[string]int, len(formulaDimOrder))
	counts := make(map[string]int, len(formulaDimOrder))
	matched := 0
	for _, q := range formula.Questions {
		v, ok := answers[q.ID]
		if !ok {
			continue
		}
		if v < 1 || v > 5 {
			return nil, eris.Errorf("scoring: answer %s=%d outside Likert scale", q.ID, v)
		}
		sums[q.Dimension] += v
		counts[q.Dimension]++
		matched++
	}
	if matched == 0 {
		return nil, eris.New("scoring: no answers matched any question")
	}

	scores := make(map[string]float64, len(formulaDimOrder))
	for _, dim := range formulaDimOrder {
		if counts[dim] == 0 {
			scores[dim] = 0
			continue
		}
		avg := float64(sums[dim]) / float64(counts[dim])
		scores[dim] = (avg - 1) / 4 * 100
	}

	dominant := formulaDimOrder[0]
	for _, dim := range formulaDimOrder[1:] {
		if scores[dim] > scores[dominant] {
			dominant = dim
		}
	}
	interp := formula.Dimensions[dominant]

	return &FormulaResult{
		Type:           dominant,
		PrimaryName:    interp.Title,
		Scores:         scores,
		Interpretation: interp,
	}, nil
}
