package nutrition

import (
	"reflect"
	"testing"

	"dietexpert/backend/internal/logger"
)

func TestPassesConsumptionGate(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I just had a turkey sandwich", true},
		{"For breakfast: oatmeal with berries", true},
		{"Bugün pilav yedim", true},
		{"I didn't eat the cake", true},
		{"What's in a Caesar salad?", false},
		{"Tell me about protein", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := PassesConsumptionGate(tc.text); got != tc.want {
			t.Fatalf("PassesConsumptionGate(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestPassesCalorieGate(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"That is roughly 300 kcal.", true},
		{"Calories: 250", true},
		{"An egg has about 70 calories", true},
		{"The estimated calories come to 640", true},
		{"Lots of protein and fiber.", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := PassesCalorieGate(tc.text); got != tc.want {
			t.Fatalf("PassesCalorieGate(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestExtractTotalRangeBecomesMixedPlate(t *testing.T) {
	e := NewExtractor(logger.NewNop())

	got := e.Extract("Total calories: approximately 450-550 calories")
	want := []FoodItem{{FoodName: MixedPlateLabel, Calories: 500}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestExtractBulletsKeepSourceOrder(t *testing.T) {
	e := NewExtractor(logger.NewNop())

	got := e.Extract("• Grilled chicken: 300 calories\n• Rice: 200 calories")
	want := []FoodItem{
		{FoodName: "Grilled chicken", Calories: 300},
		{FoodName: "Rice", Calories: 200},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestExtractStrategies(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []FoodItem
	}{
		{
			name: "total short circuits bullets",
			text: "• Eggs: 140 calories\n• Toast: 80 calories\nTotal: 220 calories",
			want: []FoodItem{{FoodName: MixedPlateLabel, Calories: 220}},
		},
		{
			name: "numbered list with markdown",
			text: "1. **Banana:** 105 calories\n2. Greek yogurt: about 150 kcal",
			want: []FoodItem{
				{FoodName: "Banana", Calories: 105},
				{FoodName: "Greek yogurt", Calories: 150},
			},
		},
		{
			name: "bullet range takes lower bound",
			text: "- Oatmeal: 150-200 calories",
			want: []FoodItem{{FoodName: "Oatmeal", Calories: 150}},
		},
		{
			name: "names are normalised",
			text: "* GRILLED Salmon: 350 kcal",
			want: []FoodItem{{FoodName: "Grilled salmon", Calories: 350}},
		},
		{
			name: "sentence fallback strips verbs",
			text: "A medium apple has about 95 calories.",
			want: []FoodItem{{FoodName: "A medium apple", Calories: 95}},
		},
		{
			name: "sentence fallback strips leading filler",
			text: "I ate a banana, about 105 calories!",
			want: []FoodItem{{FoodName: "A banana", Calories: 105}},
		},
		{
			name: "sentence verb strip keeps words that contain it",
			text: "Fish has 200 calories.",
			want: []FoodItem{{FoodName: "Fish", Calories: 200}},
		},
		{
			name: "total with thousands separator",
			text: "The total calorie estimate is around 1,200 calories.",
			want: []FoodItem{{FoodName: MixedPlateLabel, Calories: 1200}},
		},
		{
			name: "total range with thousands separators",
			text: "Total: 1,000-1,400 calories",
			want: []FoodItem{{FoodName: MixedPlateLabel, Calories: 1200}},
		},
		{
			name: "bullets with thousands separator",
			text: "- Pizza: 1,100 calories\n- Soda: 150 calories",
			want: []FoodItem{
				{FoodName: "Pizza", Calories: 1100},
				{FoodName: "Soda", Calories: 150},
			},
		},
		{
			name: "nothing to find",
			text: "Broccoli is rich in vitamin C.",
			want: []FoodItem{},
		},
	}

	e := NewExtractor(logger.NewNop())
	for _, tc := range cases {
		got := e.Extract(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestParseConversationRequiresBothGates(t *testing.T) {
	e := NewExtractor(logger.NewNop())
	reply := "• Grilled chicken: 300 calories\n• Rice: 200 calories"

	if got := e.ParseConversation("Tell me about protein", reply); len(got) != 0 {
		t.Fatalf("expected consumption gate to block, got %+v", got)
	}
	if got := e.ParseConversation("I had chicken and rice for lunch", "Sounds like a balanced plate."); len(got) != 0 {
		t.Fatalf("expected calorie gate to block, got %+v", got)
	}
	if got := e.ParseConversation("I had chicken and rice for lunch", ""); len(got) != 0 {
		t.Fatalf("expected empty reply to yield nothing, got %+v", got)
	}

	got := e.ParseConversation("I had chicken and rice for lunch", reply)
	if len(got) != 2 || got[0].FoodName != "Grilled chicken" || got[1].Calories != 200 {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestParseTextUsesTextForBothRoles(t *testing.T) {
	e := NewExtractor(logger.NewNop())

	got := e.ParseText("I ate a banana, about 105 calories")
	want := []FoodItem{{FoodName: "A banana", Calories: 105}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected items: %+v", got)
	}

	if got := e.ParseText("about 105 calories in a banana"); len(got) != 0 {
		t.Fatalf("expected text without consumption keywords to yield nothing, got %+v", got)
	}
}

func TestExtractRecoversFromPanickingStrategy(t *testing.T) {
	e := &Extractor{
		log: logger.NewNop(),
		strategies: []strategy{{
			name: "broken",
			run:  func(string) []FoodItem { panic("boom") },
		}},
	}

	got := e.Extract("Total: 100 calories")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}
