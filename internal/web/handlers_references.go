package web

import "net/http"

func (s *Server) handleListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.service.ListCities(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, cities)
}

func (s *Server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.service.ListCountries(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, countries)
}
