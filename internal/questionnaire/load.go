// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package questionnaire loads the question set, decides which questions are
// visible for a given AnswerMap, validates answers, and computes progress.
package questionnaire

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

// rawQuestionSet mirrors the YAML file. depends_on is kept as a node because
// it may be written as "questionId=value" or as {question, equals}.
type rawQuestionSet struct {
	Sections []rawSection `yaml:"sections"`
}

type rawSection struct {
	ID          string             `yaml:"id"`
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Strategy    types.StrategyName `yaml:"strategy"`
	MinLength   int                `yaml:"min_length"`
	Questions   []rawQuestion      `yaml:"questions"`
}

type rawQuestion struct {
	ID        string          `yaml:"id"`
	Text      string          `yaml:"text"`
	Kind      types.InputKind `yaml:"kind"`
	Options   []string        `yaml:"options"`
	Required  bool            `yaml:"required"`
	DependsOn yaml.Node       `yaml:"depends_on"`
	AIAssist  bool            `yaml:"ai_assist"`
}

// LoadQuestionSet reads and validates a YAML question set file.
func LoadQuestionSet(path string) (*types.QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question set: %w", err)
	}
	return ParseQuestionSet(data)
}

// ParseQuestionSet decodes a YAML question set, converts dependency
// predicates to structured form, and validates the result.
func ParseQuestionSet(data []byte) (*types.QuestionSet, error) {
	var raw rawQuestionSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing question set: %w", err)
	}

	set := &types.QuestionSet{Sections: make([]types.Section, 0, len(raw.Sections))}
	for _, rs := range raw.Sections {
		sec := types.Section{
			ID:          rs.ID,
			Title:       rs.Title,
			Description: rs.Description,
			Strategy:    rs.Strategy,
			MinLength:   rs.MinLength,
			Questions:   make([]types.Question, 0, len(rs.Questions)),
		}
		for _, rq := range rs.Questions {
			dep, err := decodeDependency(&rq.DependsOn)
			if err != nil {
				return nil, fmt.Errorf("question %q: %w", rq.ID, err)
			}
			kind := rq.Kind
			if kind == "" {
				kind = types.KindText
			}
			sec.Questions = append(sec.Questions, types.Question{
				ID:        rq.ID,
				Text:      rq.Text,
				Kind:      kind,
				Options:   rq.Options,
				Required:  rq.Required,
				DependsOn: dep,
				AIAssist:  rq.AIAssist,
			})
		}
		set.Sections = append(set.Sections, sec)
	}

	if err := Validate(set); err != nil {
		return nil, err
	}
	return set, nil
}

func decodeDependency(node *yaml.Node) (*types.Dependency, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" || strings.TrimSpace(node.Value) == "" {
			return nil, nil
		}
		return ParseDependency(node.Value)
	case yaml.MappingNode:
		var dep types.Dependency
		if err := node.Decode(&dep); err != nil {
			return nil, fmt.Errorf("decoding depends_on: %w", err)
		}
		if dep.QuestionID == "" {
			return nil, fmt.Errorf("depends_on: missing question")
		}
		return &dep, nil
	default:
		return nil, fmt.Errorf("depends_on: unsupported form at line %d", node.Line)
	}
}

// ParseDependency converts the "questionId=value" encoding into a Dependency.
// Only equality is expressible; the value may itself contain '='.
func ParseDependency(s string) (*types.Dependency, error) {
	id, value, ok := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return nil, fmt.Errorf("depends_on %q: want questionId=value", s)
	}
	return &types.Dependency{QuestionID: id, Expected: value}, nil
}

// Validate checks structural consistency of a question set: unique ids,
// resolvable dependencies, and options for single-choice questions.
func Validate(set *types.QuestionSet) error {
	var problems []string
	sectionIDs := make(map[string]bool)
	questions := make(map[string]types.Question)

	for _, s := range set.Sections {
		if s.ID == "" {
			problems = append(problems, fmt.Sprintf("section %q has no id", s.Title))
		} else if sectionIDs[s.ID] {
			problems = append(problems, fmt.Sprintf("duplicate section id %q", s.ID))
		}
		sectionIDs[s.ID] = true

		switch s.Strategy {
		case "", types.StrategyDefault, types.StrategyNarrative, types.StrategyChoice:
		default:
			problems = append(problems, fmt.Sprintf("section %q: unknown strategy %q", s.ID, s.Strategy))
		}

		for _, q := range s.Questions {
			if q.ID == "" {
				problems = append(problems, fmt.Sprintf("section %q: question without id", s.ID))
				continue
			}
			if _, dup := questions[q.ID]; dup {
				problems = append(problems, fmt.Sprintf("duplicate question id %q", q.ID))
			}
			questions[q.ID] = q
			if q.Kind == types.KindSingleChoice && len(q.Options) == 0 {
				problems = append(problems, fmt.Sprintf("question %q: single_choice without options", q.ID))
			}
		}
	}

	for _, s := range set.Sections {
		for _, q := range s.Questions {
			if q.DependsOn == nil {
				continue
			}
			target, ok := questions[q.DependsOn.QuestionID]
			switch {
			case !ok:
				problems = append(problems, fmt.Sprintf("question %q depends on unknown question %q", q.ID, q.DependsOn.QuestionID))
			case target.ID == q.ID:
				problems = append(problems, fmt.Sprintf("question %q depends on itself", q.ID))
			case target.Kind == types.KindSingleChoice && !target.HasOption(q.DependsOn.Expected):
				problems = append(problems, fmt.Sprintf("question %q expects %q which is not an option of %q", q.ID, q.DependsOn.Expected, target.ID))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid question set: %s", strings.Join(problems, "; "))
	}
	return nil
}
