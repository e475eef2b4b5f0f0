package serve

import (
	"encoding/json"
	"net/http"
)

// InfoServer serves the source properties as JSON.
type InfoServer struct {
	frames *RandomAccess
}

func (s *InfoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	js, err := json.Marshal(s.frames.Info())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
