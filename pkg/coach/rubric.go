package coach

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rubric is the fixed assessment guide embedded in every assessment prompt.
type Rubric struct {
	Communication       string `yaml:"communication"`
	Technical           string `yaml:"technical"`
	Overall             string `yaml:"overall"`
	AreasForImprovement string `yaml:"areas_for_improvement"`
}

func DefaultRubric() Rubric {
	return Rubric{
		Communication:       "Clarity, conciseness, engagement, and active listening.",
		Technical:           "Depth of knowledge, accuracy, and practical application of concepts.",
		Overall:             "Confidence, problem-solving ability, and suitability for the role.",
		AreasForImprovement: "Specific, actionable steps for enhancing performance as a list of bullet points.",
	}
}

// LoadRubric reads a YAML rubric. Criteria missing from the file keep their
// default text. An empty path returns the default rubric.
func LoadRubric(path string) (Rubric, error) {
	r := DefaultRubric()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read rubric: %w", err)
	}
	var override Rubric
	if err := yaml.Unmarshal(data, &override); err != nil {
		return r, fmt.Errorf("parse rubric %s: %w", path, err)
	}
	if v := strings.TrimSpace(override.Communication); v != "" {
		r.Communication = v
	}
	if v := strings.TrimSpace(override.Technical); v != "" {
		r.Technical = v
	}
	if v := strings.TrimSpace(override.Overall); v != "" {
		r.Overall = v
	}
	if v := strings.TrimSpace(override.AreasForImprovement); v != "" {
		r.AreasForImprovement = v
	}
	return r, nil
}

// Render formats the rubric as prompt text.
func (r Rubric) Render() string {
	return "Rubric Criteria:\n" +
		"Communication Skills: " + r.Communication + "\n" +
		"Technical Knowledge: " + r.Technical + "\n" +
		"Overall Performance: " + r.Overall + "\n" +
		"Areas for Improvement: " + r.AreasForImprovement
}
