package listsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func searchFixture() *SearchIndex {
	return NewSearchIndex([]Item{
		{ID: 1, Name: "Milk"},
		{ID: 2, Name: "Mints"},
		{ID: 3, Name: "Eggs"},
		{ID: 4, Name: "Oat Milk"},
		{ID: 5, Name: "Brown Eggs"},
	})
}

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestSearchPrefix(t *testing.T) {
	x := searchFixture()
	assert.Equal(t, names(x.Search("mi")), []string{"Milk", "Mints", "Oat Milk"})
	assert.Equal(t, names(x.Search("milk")), []string{"Milk", "Oat Milk"})
	assert.Equal(t, names(x.Search("eggs")), []string{"Brown Eggs", "Eggs"})
}

func TestSearchMatchesAnyWordOfName(t *testing.T) {
	x := searchFixture()
	assert.Equal(t, names(x.Search("oat")), []string{"Oat Milk"})
	assert.Equal(t, names(x.Search("brown")), []string{"Brown Eggs"})
}

func TestSearchEveryTermMustMatch(t *testing.T) {
	x := searchFixture()
	assert.Equal(t, names(x.Search("oat milk")), []string{"Oat Milk"})
	assert.Equal(t, len(x.Search("milk eggs")), 0)
}

func TestSearchCaseInsensitive(t *testing.T) {
	x := searchFixture()
	assert.Equal(t, names(x.Search("MILK")), []string{"Milk", "Oat Milk"})
}

func TestSearchEmptyQueryMatchesEverything(t *testing.T) {
	x := searchFixture()
	assert.Equal(t, len(x.Search("")), 5)
	assert.Equal(t, len(x.Search("   ")), 5)
}

func TestSearchNoMatch(t *testing.T) {
	x := searchFixture()
	assert.Equal(t, len(x.Search("zucchini")), 0)
}
