package personalization

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"dietexpert/backend/internal/logger"
)

//go:embed training.yaml
var defaultTrainingYAML []byte

// Classifier buckets a free-text query into a personalization level.
// Implementations never fail: anything unexpected yields LevelLight.
type Classifier interface {
	Classify(query string) Level
}

type Example struct {
	Text  string
	Level Level
}

// ParseTrainingSet reads a YAML mapping of level name to phrase list.
// Levels are emitted in ascending order so training is deterministic.
func ParseTrainingSet(raw []byte) ([]Example, error) {
	var doc map[string][]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse training set: %w", err)
	}

	byLevel := make(map[Level][]string, len(doc))
	for name, phrases := range doc {
		level, ok := ParseLevel(name)
		if !ok {
			return nil, fmt.Errorf("parse training set: unknown level %q", name)
		}
		byLevel[level] = append(byLevel[level], phrases...)
	}

	var examples []Example
	for level := LevelNone; level <= LevelFull; level++ {
		for _, phrase := range byLevel[level] {
			if strings.TrimSpace(phrase) == "" {
				continue
			}
			examples = append(examples, Example{Text: phrase, Level: level})
		}
	}
	if len(examples) == 0 {
		return nil, errors.New("parse training set: no examples")
	}
	return examples, nil
}

func DefaultTrainingSet() ([]Example, error) {
	return ParseTrainingSet(defaultTrainingYAML)
}

// BayesClassifier is a multinomial naive Bayes model over lowercase word
// tokens with add-one smoothing. It is immutable once built and safe for
// concurrent use.
type BayesClassifier struct {
	log         *logger.Logger
	levels      []Level
	logPrior    map[Level]float64
	tokenCounts map[Level]map[string]int
	tokenTotals map[Level]int
	vocabulary  map[string]struct{}
}

func NewBayesClassifier(examples []Example, log *logger.Logger) (*BayesClassifier, error) {
	if len(examples) == 0 {
		return nil, errors.New("bayes classifier: no training examples")
	}

	c := &BayesClassifier{
		log:         logger.OrNop(log),
		logPrior:    map[Level]float64{},
		tokenCounts: map[Level]map[string]int{},
		tokenTotals: map[Level]int{},
		vocabulary:  map[string]struct{}{},
	}

	docs := map[Level]int{}
	for _, example := range examples {
		if example.Level < LevelNone || example.Level > LevelFull {
			return nil, fmt.Errorf("bayes classifier: invalid level %d", int(example.Level))
		}
		tokens := Tokenize(example.Text)
		if len(tokens) == 0 {
			continue
		}
		docs[example.Level]++
		counts := c.tokenCounts[example.Level]
		if counts == nil {
			counts = map[string]int{}
			c.tokenCounts[example.Level] = counts
		}
		for _, token := range tokens {
			counts[token]++
			c.tokenTotals[example.Level]++
			c.vocabulary[token] = struct{}{}
		}
	}

	totalDocs := 0
	for _, n := range docs {
		totalDocs += n
	}
	if totalDocs == 0 {
		return nil, errors.New("bayes classifier: training examples contain no tokens")
	}
	for level := LevelNone; level <= LevelFull; level++ {
		if docs[level] == 0 {
			continue
		}
		c.levels = append(c.levels, level)
		c.logPrior[level] = math.Log(float64(docs[level]) / float64(totalDocs))
	}
	return c, nil
}

func NewDefaultClassifier(log *logger.Logger) (*BayesClassifier, error) {
	examples, err := DefaultTrainingSet()
	if err != nil {
		return nil, err
	}
	return NewBayesClassifier(examples, log)
}

// Classify returns the most probable level. Tokens never seen in training
// are ignored; a query with no known tokens gets LevelLight.
func (c *BayesClassifier) Classify(query string) (level Level) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("request classification failed", "panic", fmt.Sprint(r))
			level = LevelLight
		}
	}()

	if c == nil || len(c.levels) == 0 {
		return LevelLight
	}

	var known []string
	for _, token := range Tokenize(query) {
		if _, ok := c.vocabulary[token]; ok {
			known = append(known, token)
		}
	}
	if len(known) == 0 {
		c.log.Debug("no known tokens in request, using default level", "level", LevelLight.String())
		return LevelLight
	}

	vocabSize := float64(len(c.vocabulary))
	best := LevelLight
	bestScore := math.Inf(-1)
	for _, candidate := range c.levels {
		score := c.logPrior[candidate]
		denominator := float64(c.tokenTotals[candidate]) + vocabSize
		for _, token := range known {
			score += math.Log(float64(c.tokenCounts[candidate][token]+1) / denominator)
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}

	c.log.Debug("classified request", "level", best.String())
	return best
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
