package middleware

import "net/http"

func newCookie(value string) *http.Cookie {
	return &http.Cookie{Name: SessionCookieName, Value: value}
}
