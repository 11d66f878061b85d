package dashboard

import (
	"net/http"
)

// Handler serves the control page. The page talks to the /api routes of
// the same server.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(controlHTML))
	})
}
