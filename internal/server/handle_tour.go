package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/questofseoul/tourguide/internal/tour"
)

// TourSummary is one entry in GET /api/v1/tours.
type TourSummary struct {
	TourID      int64  `json:"tourId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// SpotDTO is a route spot within a tour detail.
type SpotDTO struct {
	SpotID     int64   `json:"spotId"`
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	RadiusM    int     `json:"radiusM"`
	OrderIndex int     `json:"orderIndex"`
}

// TourDetailResponse is the body of GET /api/v1/tours/{tourId}.
type TourDetailResponse struct {
	TourID      int64     `json:"tourId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Spots       []SpotDTO `json:"spots"`
}

func handleListTours(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tours, err := store.ListTours(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := make([]TourSummary, 0, len(tours))
		for _, t := range tours {
			resp = append(resp, TourSummary{TourID: t.ID, Title: t.Title, Description: t.Description})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleTourDetail(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tourID, err := int64Param(r, "tourId")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tour id")
			return
		}

		t, err := store.GetTour(r.Context(), tourID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "tour not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := TourDetailResponse{
			TourID:      t.ID,
			Title:       t.Title,
			Description: t.Description,
			Spots:       make([]SpotDTO, 0, len(t.Spots)),
		}
		for _, sp := range t.Spots {
			resp.Spots = append(resp.Spots, spotDTO(sp))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func spotDTO(sp tour.Spot) SpotDTO {
	return SpotDTO{
		SpotID:     sp.ID,
		Type:       string(sp.Type),
		Title:      sp.Title,
		Lat:        sp.Latitude,
		Lng:        sp.Longitude,
		RadiusM:    sp.RadiusM,
		OrderIndex: sp.OrderIndex,
	}
}

func int64Param(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func int64Query(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
