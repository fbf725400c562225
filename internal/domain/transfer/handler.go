package transfer

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/platform/auth"
	"github.com/clinic/frontdesk/pkg/pagination"
)

// genericFailure is what callers see when an accept fails part-way.
const genericFailure = "transfer failed, please try again"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/transfers", auth.RequireRole("admin", "therapist", "receptionist"))
	read.GET("", h.List)
	read.GET("/conflicts", h.CheckConflicts)
	read.GET("/history", h.ListHistory)
	read.GET("/:id", h.Get)

	write := api.Group("/transfers", auth.RequireRole("admin", "therapist"))
	write.POST("", h.Create)
	write.POST("/:id/accept", h.Accept)
	write.POST("/:id/reject", h.Reject)
}

// errorStatus maps service errors onto HTTP errors.
func errorStatus(err error) error {
	var ce *ConflictError
	switch {
	case errors.As(err, &ce):
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"message":   ce.Error(),
			"conflicts": ce.Conflicts,
		})
	case errors.Is(err, ErrDestinationRequired), errors.Is(err, ErrSelfTransfer),
		errors.Is(err, ErrPatientRequired), errors.Is(err, ErrRequesterRequired),
		errors.Is(err, ErrAlreadyAssigned), errors.Is(err, ErrTherapistInactive),
		errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownPatient), errors.Is(err, ErrUnknownTherapist):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotAddressee):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrPendingRequestExists), errors.Is(err, ErrNotPending):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, availability.ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, "availability changed while accepting, please try again")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, genericFailure)
	}
}

func actor(c echo.Context) (uuid.UUID, error) {
	id, err := auth.ActorID(c)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return id, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryID(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) CheckConflicts(c echo.Context) error {
	patientID, err := queryID(c, "patient_id")
	if err != nil {
		return err
	}
	toID, err := queryID(c, "to_therapist_id")
	if err != nil {
		return err
	}
	conflicts, err := h.svc.CheckConflicts(c.Request().Context(), patientID, toID)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conflicts": conflicts,
		"total":     len(conflicts),
	})
}

func (h *Handler) Create(c echo.Context) error {
	by, err := actor(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.RequestedBy = by
	req, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	req, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, req)
}

// List serves ?incoming=<therapist>, ?outgoing=<therapist> and ?status=.
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status")}
	if raw := c.QueryParam("incoming"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid incoming")
		}
		f.ToTherapistID = &id
	}
	if raw := c.QueryParam("outgoing"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid outgoing")
		}
		f.RequestedBy = &id
	}

	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type acceptRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) Accept(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	by, err := actor(c)
	if err != nil {
		return err
	}
	var body acceptRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.Accept(c.Request().Context(), id, by, body.Confirm)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, req)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	by, err := actor(c)
	if err != nil {
		return err
	}
	var body rejectRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.Reject(c.Request().Context(), id, by, body.Reason)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListHistory(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID, err := queryID(c, "patient_id")
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListHistory(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
