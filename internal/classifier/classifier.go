// Package classifier decides whether a listing belongs to a requested
// category by matching keywords against the product name, and scores
// name similarity for cross-source product matching.
package classifier

import "strings"

// ShoeKeywords is the default footwear keyword set. It covers English
// terms plus Bengali and Hindi script variants seen in South Asian
// marketplace listings.
var ShoeKeywords = []string{
	"shoe", "shoes", "sneaker", "sneakers", "boot", "boots",
	"sandal", "sandals", "loafer", "slipper", "heel", "flat",
	"trainer", "footwear", "জুতা", "जूता",
}

// Matches reports whether any keyword occurs in the listing name,
// case-insensitively. An empty name matches nothing.
func Matches(name string, keywords []string) bool {
	if name == "" {
		return false
	}

	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
