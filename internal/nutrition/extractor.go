package nutrition

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"dietexpert/backend/internal/logger"
)

const (
	calorieQualifier = `(?:approximately|around|about|roughly|~)?`
	calorieNumber    = `(\d{1,3}(?:,\d{3})+|\d+)`
)

var totalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total.*?calorie.*?(?:estimate|count).*?(?:is|=).*?` + calorieQualifier + `\s*` + calorieNumber + `(?:\s*[-–]\s*` + calorieNumber + `)?\s*calories?`),
	regexp.MustCompile(`(?i)therefore.*?total.*?(?:is|=|around|approximately|about)\s*` + calorieNumber + `(?:\s*[-–]\s*` + calorieNumber + `)?\s*calories?`),
	regexp.MustCompile(`(?i)total\s+calories?\s*(?:[:=]|is|are|of)?\s*` + calorieQualifier + `\s*` + calorieNumber + `(?:\s*[-–]\s*` + calorieNumber + `)?`),
	regexp.MustCompile(`(?i)total[:.]?\s*` + calorieNumber + `(?:\s*[-–]\s*` + calorieNumber + `)?\s*calories?`),
	regexp.MustCompile(`(?i)(?:approximately|around|about)\s*` + calorieNumber + `(?:\s*[-–]\s*` + calorieNumber + `)?\s*calories?\s*total`),
}

var (
	bulletLinePattern = regexp.MustCompile(
		`(?i)^\s*(?:[•*-]|\d+\.)\s*([^:\n]+?)[:.]?\s*` + calorieQualifier + `\s*` + calorieNumber + `(?:\s*[-–]\s*[\d,]+)?\s*(?:calories?|kcal)`,
	)
	sentencePattern = regexp.MustCompile(
		`(?i)([\p{L}\p{N}]+[^:]*?)[:.]?\s*` + calorieQualifier + `\s*` + calorieNumber + `(?:\s*[-–]\s*[\d,]+)?\s*(?:calories?|kcal)`,
	)
	sentenceSplit      = regexp.MustCompile(`[.!?]+`)
	bulletDeterminer   = regexp.MustCompile(`(?i)^(?:the|this|these|those)\s+`)
	sentenceFiller     = regexp.MustCompile(`(?i)^(?:the|this|these|those|my|i ate|i had)\s+`)
	sentenceInfix      = regexp.MustCompile(`(?i)\s*\b(?:is|are|was|were|contains?|has|have)\b\s*`)
	markdownEmphasis   = strings.NewReplacer("**", "", "__", "")
	nameEdgePunctation = " \t-–:,;"
)

type strategy struct {
	name string
	run  func(text string) []FoodItem
}

// Extractor turns an assistant reply into food records. Strategies run in
// order and the first one that yields anything wins.
type Extractor struct {
	log        *logger.Logger
	strategies []strategy
}

func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{
		log: logger.OrNop(log),
		strategies: []strategy{
			{name: "total", run: extractTotal},
			{name: "bullets", run: extractBullets},
			{name: "sentences", run: extractSentences},
		},
	}
}

// ParseConversation applies both keyword gates and only then extracts from
// the assistant reply.
func (e *Extractor) ParseConversation(userText, aiText string) []FoodItem {
	if !PassesConsumptionGate(userText) {
		e.log.Debug("no consumption keywords in user message")
		return []FoodItem{}
	}
	if strings.TrimSpace(aiText) == "" || !PassesCalorieGate(aiText) {
		e.log.Debug("no calorie information in assistant reply")
		return []FoodItem{}
	}
	items := e.Extract(aiText)
	if len(items) > 0 {
		total := 0
		for _, item := range items {
			total += item.Calories
		}
		e.log.Info("parsed food items from conversation", "items", len(items), "total_calories", total)
	}
	return items
}

// ParseText handles a manually submitted description, which plays both the
// user and the assistant role.
func (e *Extractor) ParseText(text string) []FoodItem {
	return e.ParseConversation(text, text)
}

func (e *Extractor) Extract(aiText string) (items []FoodItem) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("calorie extraction failed", "panic", fmt.Sprint(r))
			items = []FoodItem{}
		}
	}()

	for _, s := range e.strategies {
		found := s.run(aiText)
		if len(found) > 0 {
			e.log.Debug("calorie extraction strategy matched", "strategy", s.name, "items", len(found))
			return found
		}
	}
	return []FoodItem{}
}

func extractTotal(text string) []FoodItem {
	for _, pattern := range totalPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		low, err := parseCalories(match[1])
		if err != nil {
			continue
		}
		calories := low
		if match[2] != "" {
			high, err := parseCalories(match[2])
			if err != nil {
				continue
			}
			calories = int(math.Round(float64(low+high) / 2))
		}
		return []FoodItem{{FoodName: MixedPlateLabel, Calories: calories}}
	}
	return nil
}

func extractBullets(text string) []FoodItem {
	var items []FoodItem
	for _, line := range strings.Split(text, "\n") {
		match := bulletLinePattern.FindStringSubmatch(markdownEmphasis.Replace(line))
		if match == nil {
			continue
		}
		calories, err := parseCalories(match[2])
		if err != nil {
			continue
		}
		name := strings.Trim(match[1], nameEdgePunctation)
		name = strings.TrimSpace(bulletDeterminer.ReplaceAllString(name, ""))
		if item, ok := newFoodItem(name, calories); ok {
			items = append(items, item)
		}
	}
	return items
}

func extractSentences(text string) []FoodItem {
	var items []FoodItem
	for _, sentence := range sentenceSplit.Split(text, -1) {
		match := sentencePattern.FindStringSubmatch(markdownEmphasis.Replace(sentence))
		if match == nil {
			continue
		}
		calories, err := parseCalories(match[2])
		if err != nil {
			continue
		}
		name := sentenceFiller.ReplaceAllString(strings.TrimSpace(match[1]), "")
		name = replaceFirst(sentenceInfix, name, " ")
		name = strings.Trim(name, nameEdgePunctation)
		if item, ok := newFoodItem(name, calories); ok {
			items = append(items, item)
		}
	}
	return items
}

// parseCalories reads a captured count, dropping thousands separators.
func parseCalories(raw string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
}

func replaceFirst(pattern *regexp.Regexp, input, replacement string) string {
	loc := pattern.FindStringIndex(input)
	if loc == nil {
		return input
	}
	return input[:loc[0]] + replacement + input[loc[1]:]
}

func newFoodItem(name string, calories int) (FoodItem, bool) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= 1 || calories < 0 {
		return FoodItem{}, false
	}
	return FoodItem{FoodName: capitalizeFirst(name), Calories: calories}, true
}

func capitalizeFirst(value string) string {
	first, size := utf8.DecodeRuneInString(value)
	return string(unicode.ToUpper(first)) + strings.ToLower(value[size:])
}
