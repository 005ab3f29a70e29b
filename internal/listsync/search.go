package listsync

import (
	"slices"
	"sort"
	"strings"
)

// SearchIndex answers prefix queries over item names. Every whitespace
// separated word of every name is indexed; a query term matches an item when
// any of its words starts with the term, and a multi-term query requires
// every term to match.
type SearchIndex struct {
	tokens []indexToken
	items  map[int64]Item
}

type indexToken struct {
	token string
	ids   []int64
}

func NewSearchIndex(items []Item) *SearchIndex {
	byToken := map[string][]int64{}
	byID := make(map[int64]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
		for _, word := range strings.Fields(strings.ToLower(it.Name)) {
			byToken[word] = append(byToken[word], it.ID)
		}
	}
	tokens := make([]indexToken, 0, len(byToken))
	for token, ids := range byToken {
		tokens = append(tokens, indexToken{token: token, ids: ids})
	}
	slices.SortFunc(tokens, func(a, b indexToken) int {
		return strings.Compare(a.token, b.token)
	})
	return &SearchIndex{tokens: tokens, items: byID}
}

// Search returns the matching items sorted by name. An empty query matches
// everything.
func (x *SearchIndex) Search(query string) []Item {
	terms := strings.Fields(strings.ToLower(query))

	var ids map[int64]bool
	for _, term := range terms {
		matched := x.idsWithPrefix(term)
		if ids == nil {
			ids = matched
			continue
		}
		for id := range ids {
			if !matched[id] {
				delete(ids, id)
			}
		}
	}

	var out []Item
	if ids == nil {
		for _, it := range x.items {
			out = append(out, it)
		}
	} else {
		for id := range ids {
			out = append(out, x.items[id])
		}
	}
	slices.SortFunc(out, func(a, b Item) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out
}

func (x *SearchIndex) idsWithPrefix(prefix string) map[int64]bool {
	ids := map[int64]bool{}
	start := sort.Search(len(x.tokens), func(i int) bool {
		return x.tokens[i].token >= prefix
	})
	for i := start; i < len(x.tokens) && strings.HasPrefix(x.tokens[i].token, prefix); i++ {
		for _, id := range x.tokens[i].ids {
			ids[id] = true
		}
	}
	return ids
}
