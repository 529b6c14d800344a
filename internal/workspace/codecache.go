package workspace

import "github.com/felixgeelhaar/codedojo/internal/domain"

// CodeCache holds the user's current source per language for one problem.
// It is not safe for concurrent use; the Workspace serializes access.
type CodeCache struct {
	snippets domain.Snippets
	code     map[domain.LanguageID]string
	active   domain.LanguageID
}

// NewCodeCache creates an empty cache whose active language is initial.
func NewCodeCache(initial domain.LanguageID) *CodeCache {
	return &CodeCache{
		code:   make(map[domain.LanguageID]string),
		active: initial,
	}
}

// Reseed replaces all cached code with the starter snippets of p. The active
// language is kept when p offers it, otherwise the first snippet language wins.
func (c *CodeCache) Reseed(p *domain.Problem) {
	c.snippets = p.CodeSnippets
	c.code = make(map[domain.LanguageID]string, len(p.CodeSnippets))
	for _, sn := range p.CodeSnippets {
		c.code[sn.Language] = sn.Code
	}
	if !p.CodeSnippets.Has(c.active) && len(p.CodeSnippets) > 0 {
		c.active = p.CodeSnippets[0].Language
	}
}

// Select makes lang the active language.
func (c *CodeCache) Select(lang domain.LanguageID) error {
	if _, ok := c.code[lang]; !ok {
		return ErrLanguageUnavailable
	}
	c.active = lang
	return nil
}

// Edit stores text for the active language. A nil edit is stored as "".
func (c *CodeCache) Edit(text *string) {
	v := ""
	if text != nil {
		v = *text
	}
	c.code[c.active] = v
}

// Active returns the active language.
func (c *CodeCache) Active() domain.LanguageID {
	return c.active
}

// Code returns the source for the active language.
func (c *CodeCache) Code() string {
	return c.code[c.active]
}

// CodeFor returns the source for lang.
func (c *CodeCache) CodeFor(lang domain.LanguageID) (string, bool) {
	v, ok := c.code[lang]
	return v, ok
}

// Starter returns the original snippet for lang.
func (c *CodeCache) Starter(lang domain.LanguageID) string {
	v, _ := c.snippets.Lookup(lang)
	return v
}

// Languages lists the cached languages in snippet order.
func (c *CodeCache) Languages() []domain.LanguageID {
	return c.snippets.Languages()
}
