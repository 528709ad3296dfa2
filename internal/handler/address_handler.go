package handler

import (
	"net/http"

	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AddressCreateRequest struct {
	Recipient  string `json:"recipient" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	City       string `json:"city" validate:"required,max=100"`
	Line1      string `json:"line1" validate:"required,max=255"`
}

type AddressHandler struct {
	uc *usecase.AddressUsecase
}

func NewAddressHandler(uc *usecase.AddressUsecase) *AddressHandler {
	return &AddressHandler{uc: uc}
}

func (h *AddressHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/addresses", h.Create)
	g.GET("/addresses/:id", h.Get)
}

func (h *AddressHandler) Create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req AddressCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	created, err := h.uc.Create(c.Request().Context(), userID, usecase.AddressCreateInput{
		Recipient:  req.Recipient,
		PostalCode: req.PostalCode,
		City:       req.City,
		Line1:      req.Line1,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *AddressHandler) Get(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	a, err := h.uc.Get(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
