package receipt

import "strings"

// Categories a receipt can be filed under. Free-form values are accepted
// too; the fixed set exists so the extraction model has a closed list to
// choose from and so clients can attach icons to the common cases.
const (
	CategoryFoodDrinks    = "Food & Drinks"
	CategoryTravel        = "Travel"
	CategorySupplies      = "Supplies"
	CategoryEntertainment = "Entertainment"
	CategoryOther         = "Other"
)

// DefaultCategory is substituted when extraction cannot determine a category.
const DefaultCategory = CategoryOther

var allCategories = []string{
	CategoryFoodDrinks,
	CategoryTravel,
	CategorySupplies,
	CategoryEntertainment,
	CategoryOther,
}

// Categories returns the fixed category list, in display order.
func Categories() []string {
	out := make([]string, len(allCategories))
	copy(out, allCategories)
	return out
}

// KnownCategory reports whether name matches one of the fixed categories,
// ignoring case. Unknown names are still stored verbatim.
func KnownCategory(name string) bool {
	for _, c := range allCategories {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}
