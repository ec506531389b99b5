// Package grocery guesses a shopping category from a free-text item name.
package grocery

import "strings"

// Other is returned when no keyword matches.
const Other = "other"

type rule struct {
	category string
	keywords []string
}

// rules are matched as substrings of the normalized name. The longest matching
// keyword wins; on equal length the earlier rule wins.
var rules = []rule{
	{"produce", []string{
		"apple", "banana", "orange", "lemon", "lime", "avocado", "tomato", "potato",
		"onion", "garlic", "lettuce", "romaine", "spinach", "kale", "arugula",
		"broccoli", "cauliflower", "cabbage", "carrot", "celery", "cucumber",
		"pepper", "bell pepper", "mushroom", "corn", "grape", "berry", "berries",
		"watermelon", "melon", "pineapple", "mango", "peach", "pear", "cilantro",
		"basil", "parsley", "ginger", "zucchini", "squash", "asparagus",
		"green beans", "eggplant", "salad", "herb", "fruit",
	}},
	{"dairy", []string{
		"milk", "egg", "butter", "cheese", "yogurt", "yoghurt", "cream",
		"half and half", "kefir",
	}},
	{"meat", []string{
		"chicken", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak",
		"salmon", "shrimp", "tuna", "fish", "hot dog", "deli meat", "lamb",
		"crab", "lobster", "tilapia", "mince",
	}},
	{"bakery", []string{
		"bread", "bagel", "tortilla", "roll", "bun", "muffin", "croissant",
		"pita", "sourdough", "baguette",
	}},
	{"pantry", []string{
		"rice", "pasta", "spaghetti", "noodle", "flour", "sugar", "salt",
		"black pepper", "olive oil", "oil", "vinegar", "sauce", "ketchup",
		"mustard", "mayonnaise", "honey", "peanut butter", "jam", "jelly",
		"cereal", "oatmeal", "oats", "canned", "soup", "broth", "stock", "bean",
		"lentil", "nuts", "almond", "maple syrup", "salsa", "spice", "seasoning",
	}},
	{"frozen", []string{
		"frozen", "ice cream", "popsicle",
	}},
	{"drinks", []string{
		"water", "sparkling water", "juice", "coffee", "tea", "soda", "beer",
		"wine", "kombucha", "lemonade", "drink",
	}},
	{"snacks", []string{
		"chips", "cracker", "cookie", "popcorn", "pretzel", "granola bar",
		"trail mix", "candy", "chocolate", "fruit snack", "snack",
	}},
	{"household", []string{
		"paper towel", "toilet paper", "trash bag", "garbage bag", "dish soap",
		"laundry", "detergent", "sponge", "foil", "plastic wrap", "ziplock",
		"light bulb", "batteries", "battery", "napkin", "bleach", "cleaner",
		"cleaning",
	}},
	{"personal care", []string{
		"shampoo", "conditioner", "soap", "body wash", "toothpaste",
		"toothbrush", "deodorant", "lotion", "sunscreen", "floss", "razor",
		"tissue", "band-aid",
	}},
}

// Categorize returns the best category for name, or Other.
func Categorize(name string) string {
	n := normalize(name)
	if n == "" {
		return Other
	}

	best, bestLen := Other, 0
	for _, r := range rules {
		for _, kw := range r.keywords {
			if len(kw) > bestLen && strings.Contains(n, kw) {
				best, bestLen = r.category, len(kw)
			}
		}
	}
	return best
}

// Categories lists every category Categorize can return.
func Categories() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, Other)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
