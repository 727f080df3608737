package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ThemeCookie is the cookie that remembers the dashboard theme.
const ThemeCookie = "theme"

// Theme is the dashboard colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", fmt.Errorf("invalid theme %q: must be light or dark", s)
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ThemeFromRequest reads the theme cookie, defaulting to light.
func ThemeFromRequest(r *http.Request) Theme {
	cookie, err := r.Cookie(ThemeCookie)
	if err != nil {
		return ThemeLight
	}
	theme, err := ParseTheme(cookie.Value)
	if err != nil {
		return ThemeLight
	}
	return theme
}

// ThemeCookieFor builds the cookie persisting theme for a year.
func ThemeCookieFor(theme Theme) *http.Cookie {
	return &http.Cookie{
		Name:     ThemeCookie,
		Value:    string(theme),
		Path:     "/",
		Expires:  time.Now().AddDate(1, 0, 0),
		SameSite: http.SameSiteLaxMode,
	}
}
