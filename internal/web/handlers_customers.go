package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/cms/internal/core"
)

// maxJSONBody bounds single-record request bodies.
const maxJSONBody = 1 << 20

// customerResponse renders the date of birth without a time component.
// FamilyMemberIDs is filled on single-customer reads only.
type customerResponse struct {
	*core.Customer
	DateOfBirth     string  `json:"date_of_birth"`
	FamilyMemberIDs []int64 `json:"family_member_ids,omitempty"`
}

func newCustomerResponse(c *core.Customer) customerResponse {
	return customerResponse{Customer: c, DateOfBirth: c.DateOfBirth.Format("2006-01-02")}
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	customers, err := s.service.ListCustomers(r.Context(), core.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]customerResponse, len(customers))
	for i := range customers {
		out[i] = newCustomerResponse(&customers[i])
	}
	writeJSON(w, out)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	c, err := s.service.GetCustomer(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	members, err := s.service.ListFamilyMembers(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := newCustomerResponse(c)
	for _, m := range members {
		resp.FamilyMemberIDs = append(resp.FamilyMemberIDs, m.ID)
	}
	writeJSON(w, resp)
}

func (s *Server) handleListFamily(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	members, err := s.service.ListFamilyMembers(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]customerResponse, len(members))
	for i := range members {
		out[i] = newCustomerResponse(&members[i])
	}
	writeJSON(w, out)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCustomerInput(w, r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	c, err := s.service.CreateCustomer(withRequestMetadata(r.Context(), r), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/customers/%d", c.ID))
	writeJSONStatus(w, http.StatusCreated, newCustomerResponse(c))
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	in, err := decodeCustomerInput(w, r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	c, err := s.service.UpdateCustomer(withRequestMetadata(r.Context(), r), id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, newCustomerResponse(c))
}

func decodeCustomerInput(w http.ResponseWriter, r *http.Request) (core.CustomerInput, error) {
	var in core.CustomerInput

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return in, errors.New("request body is empty")
		}
		return in, fmt.Errorf("invalid request body: %w", err)
	}
	return in, nil
}

func customerID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid customer id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func queryInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}
