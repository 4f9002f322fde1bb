package httpmw

import (
	"net/http"

	"github.com/loft-algerie/messaging/internal/i18n"
)

const localeCookieMaxAge = 365 * 24 * 60 * 60

// Locale reads the language cookie. A missing or unsupported value is replaced by
// the default, and the cookie is written back so the client keeps it.
func Locale(cookieName string, def i18n.Locale) func(http.Handler) http.Handler {
	if _, ok := i18n.Parse(string(def)); !ok {
		def = i18n.Default
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := def
			valid := false
			if c, err := r.Cookie(cookieName); err == nil {
				loc, valid = i18n.Parse(c.Value)
				if !valid {
					loc = def
				}
			}
			if !valid {
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    string(loc),
					Path:     "/",
					MaxAge:   localeCookieMaxAge,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set("Content-Language", loc.Tag().String())
			next.ServeHTTP(w, r.WithContext(i18n.WithLocale(r.Context(), loc)))
		})
	}
}
