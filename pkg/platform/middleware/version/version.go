// Package version advertises which registry snapshot the server is using so
// clients can tell when their food ID table is out of date.
package version

import "net/http"

// Header carries the checksum of the registry snapshot in service.
const Header = "X-Registry-Version"

// Advertise sets Header on every response from current. An empty version is
// not advertised.
func Advertise(current func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v := current(); v != "" {
				w.Header().Set(Header, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Stale reports whether the client's registry version differs from the
// server's. Clients that send no version are never considered stale.
func Stale(r *http.Request, current string) bool {
	v := r.Header.Get(Header)
	return v != "" && current != "" && v != current
}
