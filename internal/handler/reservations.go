package handler

import (
	"bytes"         // null detection on raw JSON values
	"encoding/json" // raw decoding of partial update bodies
	"fmt"           // error wrapping
	"io"            // reading the update body
	"net/http"      // status codes
	"strings"       // trimming of dates and statuses
	"unicode/utf8"  // notes length is counted in characters

	"github.com/labstack/echo/v4" // Echo context and handler types

	"github.com/iliyamo/game-rental-reservation/internal/model"   // Date, Patch, Status
	"github.com/iliyamo/game-rental-reservation/internal/service" // reservation lifecycle
)

const (
	maxNotesLen   = 500      // characters, not bytes
	maxUpdateBody = 64 << 10 // upper bound on a PUT/PATCH body
)

// ReservationHandler exposes the reservation lifecycle to customers and
// the completion endpoint to admins.
type ReservationHandler struct {
	Svc *service.ReservationService // owns validation, locking and events
}

func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{Svc: svc}
}

// createReq also accepts the camelCase keys older clients send.
type createReq struct {
	GameID          uint64  `json:"game_id" validate:"required,min=1"`    // game to book
	ReservationDate string  `json:"reservation_date" validate:"required"` // YYYY-MM-DD
	ReturnDate      *string `json:"return_date"`                          // optional, not before ReservationDate
	Notes           *string `json:"notes" validate:"omitempty,max=500"`   // free text, trimmed by the service
}

func (r *createReq) UnmarshalJSON(b []byte) error {
	type plain createReq
	var aux struct {
		plain
		GameIDAlt          uint64  `json:"gameId"`
		ReservationDateAlt string  `json:"reservationDate"`
		ReturnDateAlt      *string `json:"returnDate"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = createReq(aux.plain)
	// Fall back to the camelCase key only when the snake_case one is absent.
	if r.GameID == 0 {
		r.GameID = aux.GameIDAlt
	}
	if r.ReservationDate == "" {
		r.ReservationDate = aux.ReservationDateAlt
	}
	if r.ReturnDate == nil {
		r.ReturnDate = aux.ReturnDateAlt
	}
	return nil
}

// List handles GET /v1/reservations?status=.
func (h *ReservationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Svc.List(ctx, uid, c.QueryParam("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list, "count": len(list)})
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	// bind and validate the request body
	var req createReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	// parse the dates; a blank return_date means none
	in := service.CreateInput{UserID: uid, GameID: req.GameID, Notes: req.Notes}
	if in.ReservationDate, err = parseBodyDate("reservation_date", req.ReservationDate); err != nil {
		return respondError(c, err)
	}
	if req.ReturnDate != nil && strings.TrimSpace(*req.ReturnDate) != "" {
		rd, err := parseBodyDate("return_date", *req.ReturnDate)
		if err != nil {
			return respondError(c, err)
		}
		in.ReturnDate = &rd
	}

	// the service checks the game, the date and the remaining stock in one tx
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.Create(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, id, ok := h.ids(c)
	if !ok {
		return nil
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.Get(ctx, id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Update handles PUT and PATCH /v1/reservations/:id. Only keys present in
// the body change; null or "" clears return_date and notes.
func (h *ReservationHandler) Update(c echo.Context) error {
	uid, id, ok := h.ids(c)
	if !ok {
		return nil
	}
	// Read the raw body: Bind cannot tell an absent key from a null one.
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUpdateBody))
	if err != nil {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid body")
	}
	patch, err := decodePatch(body)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.Update(ctx, id, uid, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles DELETE /v1/reservations/:id. The row is kept with
// status cancelled and returned.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, id, ok := h.ids(c)
	if !ok {
		return nil
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.Cancel(ctx, id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Complete handles POST /v1/admin/reservations/:id/complete.
func (h *ReservationHandler) Complete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid reservation id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.Complete(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ids extracts the caller and the :id param, writing the error response
// itself when either is missing.
func (h *ReservationHandler) ids(c echo.Context) (uid, id uint64, ok bool) {
	uid, err := getUserID(c)
	if err != nil {
		_ = fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return 0, 0, false
	}
	id, ok = parseID(c, "id")
	if !ok {
		_ = fail(c, http.StatusBadRequest, "validation_error", "invalid reservation id")
		return 0, 0, false
	}
	return uid, id, true
}

func parseBodyDate(field, raw string) (model.Date, error) {
	d, err := model.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %s: %v", service.ErrInvalidDate, field, err)
	}
	return d, nil
}

// decodePatch turns an update body into a model.Patch, telling absent
// keys apart from null ones.
func decodePatch(body []byte) (model.Patch, error) {
	var p model.Patch
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return p, fmt.Errorf("%w: body must be a JSON object", service.ErrValidation)
	}

	if v, ok := pick(raw, "reservation_date", "reservationDate"); ok {
		s, null, err := jsonString(v)
		if err != nil || null || strings.TrimSpace(s) == "" {
			return p, fmt.Errorf("%w: reservation_date must be a date", service.ErrValidation)
		}
		d, err := parseBodyDate("reservation_date", s)
		if err != nil {
			return p, err
		}
		p.ReservationDate = &d
	}

	if v, ok := pick(raw, "return_date", "returnDate"); ok {
		s, null, err := jsonString(v)
		if err != nil {
			return p, fmt.Errorf("%w: return_date must be a date or null", service.ErrValidation)
		}
		if null || strings.TrimSpace(s) == "" {
			p.ReturnDate = model.Cleared[model.Date]()
		} else {
			d, err := parseBodyDate("return_date", s)
			if err != nil {
				return p, err
			}
			p.ReturnDate = model.Set(d)
		}
	}

	if v, ok := pick(raw, "status"); ok {
		s, null, err := jsonString(v)
		if err != nil || null {
			return p, fmt.Errorf("%w: status must be a string", service.ErrValidation)
		}
		st := model.Status(strings.ToLower(strings.TrimSpace(s)))
		if !st.Valid() {
			return p, fmt.Errorf("%w: unknown status %q", service.ErrValidation, s)
		}
		p.Status = &st
	}

	if v, ok := pick(raw, "notes"); ok {
		s, null, err := jsonString(v)
		if err != nil {
			return p, fmt.Errorf("%w: notes must be a string or null", service.ErrValidation)
		}
		if utf8.RuneCountInString(s) > maxNotesLen {
			return p, fmt.Errorf("%w: notes exceed %d characters", service.ErrValidation, maxNotesLen)
		}
		if null {
			p.Notes = model.Cleared[string]()
		} else {
			p.Notes = model.Set(s)
		}
	}
	return p, nil
}

func pick(raw map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func jsonString(v json.RawMessage) (s string, null bool, err error) {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return "", true, nil
	}
	err = json.Unmarshal(v, &s)
	return s, false, err
}
