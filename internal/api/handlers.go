package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fieldbook/internal/database"
	"fieldbook/internal/domain"
	"fieldbook/internal/models"
	"fieldbook/internal/schedule"
	"fieldbook/internal/service"
)

// response is the uniform envelope of the API.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, response{Success: false, Message: message})
}

// writeServiceError maps booking core errors onto HTTP statuses. Unknown
// errors become an opaque 500; internals never leak to clients.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var conflict *schedule.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, response{
			Success: false,
			Message: "slot is not available",
			Data: map[string]interface{}{
				"booking_id": conflict.BookingID,
				"start_time": conflict.StartTime,
				"end_time":   conflict.EndTime,
			},
		})
	case errors.Is(err, service.ErrAlreadyCancelled):
		// повторная отмена считается успехом
		writeJSON(w, http.StatusOK, response{Success: true, Message: "booking is already cancelled"})
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, schedule.ErrInvalidTimeFormat),
		errors.Is(err, schedule.ErrInvalidDate),
		errors.Is(err, schedule.ErrPastDate),
		errors.Is(err, schedule.ErrInvalidTimeOrder),
		errors.Is(err, schedule.ErrPastTime),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrDateTooFar),
		errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func bookingID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	client, _ := ClientFromContext(r.Context())

	var input domain.CreateBookingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.Create(r.Context(), input, client.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	client, _ := ClientFromContext(r.Context())
	if !client.Privileged {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	filter := models.BookingFilter{Status: strings.TrimSpace(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("date_from"); v != "" {
		from, err := time.Parse(models.DateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_from; expected YYYY-MM-DD")
			return
		}
		filter.From = from
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		to, err := time.Parse(models.DateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_to; expected YYYY-MM-DD")
			return
		}
		filter.To = to
	}

	bookings, err := s.bookings.ListBookings(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	client, _ := ClientFromContext(r.Context())
	if !client.Privileged && booking.UserID != client.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeData(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var patch domain.UpdateBookingPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	client, _ := ClientFromContext(r.Context())
	booking, err := s.bookings.Update(r.Context(), id, patch, client.UserID, client.Privileged)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	client, _ := ClientFromContext(r.Context())
	booking, err := s.bookings.Delete(r.Context(), id, client.UserID, client.Privileged)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "booking cancelled", Data: booking})
}

func (s *HTTPServer) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	client, _ := ClientFromContext(r.Context())
	if !client.Privileged {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := bookingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := s.bookings.AdminCancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	client, _ := ClientFromContext(r.Context())
	if !client.Privileged {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	id, err := bookingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.AdminChangeStatus(r.Context(), id, body.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDaySchedule(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.GetDaySchedule(r.Context(), r.PathValue("date"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeData(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	client, _ := ClientFromContext(r.Context())
	if !client.Privileged && client.UserID != id {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	user, err := s.users.GetUser(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	client, _ := ClientFromContext(r.Context())
	if !client.Privileged && client.UserID != id {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	bookings, err := s.users.GetUserBookings(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeData(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	client, _ := ClientFromContext(r.Context())
	if !client.Privileged {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	from, err := time.Parse(models.DateLayout, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse(models.DateLayout, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to; expected YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}

	bookings, err := s.bookings.ListBookings(r.Context(), models.BookingFilter{From: from, To: to})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	path, err := s.exporter.WriteSchedule(r.Context(), from, to, bookings)
	if err != nil {
		s.log.Error().Err(err).Msg("schedule export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(path))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
