package httpapi

import "net/http"

// CORS allows any origin to read from the API, matching the wide-open
// posture the client-side visualizer needs when served from a different
// origin during development (router_tablebase.go referenced this
// middleware without defining it; the teacher's chain assumed its
// existence).
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
