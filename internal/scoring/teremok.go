package scoring

import "github.com/rotisserie/eris"

// TeremokResult is the outcome of the teremok diagnostic.
type TeremokResult struct {
	Type   string             `json:"type"`
	Scores map[string]float64 `json:"scores"`
	Info   TypeInfo           `json:"info"`
}

// CalculateTeremok tallies archetype votes from option choices and picks
// the dominant type. Answers map question id to option id; unknown
// question or option ids are skipped, but at least one answer must land.
func CalculateTeremok(answers map[string]string) (*TeremokResult, error) {
	if len(answers) == 0 {
		return nil, eris.New("scoring: no answers given")
	}

	scores := make(map[string]float64, len(teremokTypeOrder))
	for _, t := range teremokTypeOrder {
		scores[t] = 0
	}

	matched := 0
	for _, q := range teremok.Questions {
		optID, ok := answers[q.ID]
		if !ok {
			continue
		}
		for _, opt := range q.Options {
			if opt.ID != optID {
				continue
			}
			for t, votes := range opt.Votes {
				scores[t] += float64(votes)
			}
			matched++
			break
		}
	}
	if matched == 0 {
		return nil, eris.New("scoring: no answers matched any question")
	}

	dominant := teremokTypeOrder[0]
	for _, t := range teremokTypeOrder[1:] {
		if scores[t] > scores[dominant] {
			dominant = t
		}
	}

	return &TeremokResult{
		Type:   dominant,
		Scores: scores,
		Info:   teremok.Types[dominant],
	}, nil
}
