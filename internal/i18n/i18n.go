// Package i18n resolves the caller's locale and translates the short error catalog.
package i18n

import (
	"context"
	"strings"

	"golang.org/x/text/language"
)

type Locale string

const (
	EN Locale = "en"
	FR Locale = "fr"
	AR Locale = "ar"

	Default = FR
)

var tags = map[language.Base]Locale{
	mustBase("en"): EN,
	mustBase("fr"): FR,
	mustBase("ar"): AR,
}

func mustBase(s string) language.Base {
	return language.MustParseBase(s)
}

// Parse accepts exactly one of the supported locale codes, case-insensitive.
func Parse(s string) (Locale, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf != language.Exact || tag.String() != base.String() {
		return "", false
	}
	loc, ok := tags[base]
	return loc, ok
}

// Tag returns the BCP 47 tag of loc.
func (l Locale) Tag() language.Tag {
	return language.Make(string(l))
}

type ctxKey struct{}

func WithLocale(ctx context.Context, l Locale) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func FromContext(ctx context.Context) Locale {
	if l, ok := ctx.Value(ctxKey{}).(Locale); ok {
		return l
	}
	return Default
}
