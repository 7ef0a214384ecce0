// Package scoring maps raw test answers to result documents. Both
// calculators are pure functions over content embedded at build time;
// the rest of the system treats their output as opaque JSON.
package scoring

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed content/teremok.yaml
var teremokYAML []byte

//go:embed content/formula.yaml
var formulaYAML []byte

// TypeInfo describes one teremok archetype.
type TypeInfo struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// TeremokOption is one selectable answer carrying votes for archetypes.
type TeremokOption struct {
	ID    string         `yaml:"id" json:"id"`
	Text  string         `yaml:"text" json:"text"`
	Votes map[string]int `yaml:"votes" json:"-"`
}

// TeremokQuestion is a multiple-choice diagnostic question.
type TeremokQuestion struct {
	ID      string          `yaml:"id" json:"id"`
	Text    string          `yaml:"text" json:"text"`
	Options []TeremokOption `yaml:"options" json:"options"`
}

type teremokContent struct {
	Types     map[string]TypeInfo `yaml:"types"`
	Questions []TeremokQuestion   `yaml:"questions"`
}

// Interpretation is the narrative block for a formula dimension.
type Interpretation struct {
	Title           string   `yaml:"title" json:"title"`
	Description     string   `yaml:"description" json:"description"`
	Recommendations []string `yaml:"recommendations" json:"recommendations"`
}

// FormulaQuestion is a Likert-scale statement tied to one dimension.
type FormulaQuestion struct {
	ID        string `yaml:"id" json:"id"`
	Text      string `yaml:"text" json:"text"`
	Dimension string `yaml:"dimension" json:"dimension"`
}

type formulaContent struct {
	Dimensions map[string]Interpretation `yaml:"dimensions"`
	Questions  []FormulaQuestion         `yaml:"questions"`
}

var (
	teremok teremokContent
	formula formulaContent

	// Deterministic iteration order for dominant-type tie-breaks.
	teremokTypeOrder = []string{"mouse", "frog", "hare", "fox", "wolf", "bear"}
	formulaDimOrder  = []string{"rezultatnost", "processnost", "statusnost", "systemnost"}
)

func init() {
	if err := yaml.Unmarshal(teremokYAML, &teremok); err != nil {
		panic(fmt.Sprintf("scoring: parse teremok content: %v", err))
	}
	if err := yaml.Unmarshal(formulaYAML, &formula); err != nil {
		panic(fmt.Sprintf("scoring: parse formula content: %v", err))
	}
}

// TeremokQuestions returns the diagnostic questions for the teremok test.
func TeremokQuestions() []TeremokQuestion {
	return teremok.Questions
}

// FormulaQuestions returns the Likert statements for the formula test.
func FormulaQuestions() []FormulaQuestion {
	return formula.Questions
}

// TypeCatalog returns the teremok archetype catalog keyed by type code.
func TypeCatalog() map[string]TypeInfo {
	return teremok.Types
}
