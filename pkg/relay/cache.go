package relay

import (
	gocache "github.com/patrickmn/go-cache"
)

// keyPrefixRunes bounds how much of the source text identifies a cache
// entry. Buffers sharing a prefix of this length share the entry.
const keyPrefixRunes = 100

// Cache memoizes translations for one relay. Entries never expire; the
// cache dies with the listener.
type Cache struct {
	items *gocache.Cache
}

func NewCache() *Cache {
	return &Cache{items: gocache.New(gocache.NoExpiration, 0)}
}

func cacheKey(sourceLang, targetLang, text string) string {
	runes := []rune(text)
	if len(runes) > keyPrefixRunes {
		runes = runes[:keyPrefixRunes]
	}
	return sourceLang + "|" + targetLang + "|" + string(runes)
}

func (c *Cache) Get(sourceLang, targetLang, text string) (string, bool) {
	v, ok := c.items.Get(cacheKey(sourceLang, targetLang, text))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *Cache) Set(sourceLang, targetLang, text, translated string) {
	c.items.Set(cacheKey(sourceLang, targetLang, text), translated, gocache.NoExpiration)
}

func (c *Cache) Len() int {
	return c.items.ItemCount()
}
