package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/parkspot/internal/errors"
	"github.com/stwalsh4118/parkspot/internal/models"
	"github.com/stwalsh4118/parkspot/internal/services"
)

const (
	// NotFoundMessage is returned for any id that has no assignment.
	NotFoundMessage = "This id not exists"
	// DeletedMessage confirms a delete.
	DeletedMessage = "item deleted"
	// UpdatedMessage confirms an update.
	UpdatedMessage = "updated"
)

// ParkingSpotHandler handles parking spot assignment HTTP requests.
type ParkingSpotHandler struct {
	service services.ParkingSpotService
}

// NewParkingSpotHandler creates a new ParkingSpotHandler instance.
func NewParkingSpotHandler(service services.ParkingSpotService) *ParkingSpotHandler {
	return &ParkingSpotHandler{
		service: service,
	}
}

// ParkingSpotRequest is the create and update payload. Max lengths follow the
// parking_spots column sizes and apply to the trimmed values.
type ParkingSpotRequest struct {
	ParkingSpotNumber string `json:"parking_spot_number" binding:"required,notblank,max=10"`
	LicensePlateCar   string `json:"license_plate_car" binding:"required,notblank,max=7"`
	BrandCar          string `json:"brand_car" binding:"required,notblank,max=70"`
	ModelCar          string `json:"model_car" binding:"required,notblank,max=70"`
	ColorCar          string `json:"color_car" binding:"required,notblank,max=70"`
	Apartment         string `json:"apartment" binding:"required,notblank,max=30"`
	Block             string `json:"block" binding:"required,notblank,max=30"`
}

// UnmarshalJSON trims every field while decoding, so binding validates the
// values that will be stored.
func (r *ParkingSpotRequest) UnmarshalJSON(data []byte) error {
	type plain ParkingSpotRequest
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*r = ParkingSpotRequest{
		ParkingSpotNumber: strings.TrimSpace(decoded.ParkingSpotNumber),
		LicensePlateCar:   strings.TrimSpace(decoded.LicensePlateCar),
		BrandCar:          strings.TrimSpace(decoded.BrandCar),
		ModelCar:          strings.TrimSpace(decoded.ModelCar),
		ColorCar:          strings.TrimSpace(decoded.ColorCar),
		Apartment:         strings.TrimSpace(decoded.Apartment),
		Block:             strings.TrimSpace(decoded.Block),
	}
	return nil
}

// ListQuery represents the query parameters for the list endpoint.
// Sort is "field" or "field,direction".
type ListQuery struct {
	Sort string `form:"sort"`
	Page string `form:"page"`
	Size string `form:"size"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// UpdateResponse is returned by a successful update.
type UpdateResponse struct {
	ParkingSpot *models.ParkingSpot `json:"parking_spot"`
	Message     string              `json:"message"`
}

// RegisterRoutes mounts the parking spot endpoints on rg.
func (h *ParkingSpotHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/create", h.Create)
	rg.GET("/list", h.List)
	rg.GET("/take/:id", h.Get)
	rg.DELETE("/delete/:id", h.Delete)
	rg.PUT("/update/:id", h.Update)
}

// Create handles POST /parking-spot/create.
func (h *ParkingSpotHandler) Create(c *gin.Context) {
	req, err := bindParkingSpot(c)
	if err != nil {
		respondBindError(c, err)
		return
	}

	spot, err := h.service.Create(c.Request.Context(), req.toParkingSpot())
	if err != nil {
		respondServiceError(c, err, "Failed to create parking spot")
		return
	}

	c.JSON(http.StatusCreated, spot)
}

// List handles GET /parking-spot/list.
// Paging values that do not parse fall back to the defaults.
func (h *ParkingSpotHandler) List(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	page, err := h.service.List(c.Request.Context(), query.toPageRequest())
	if err != nil {
		respondServiceError(c, err, "Failed to list parking spots")
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get handles GET /parking-spot/take/:id.
func (h *ParkingSpotHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	spot, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to query parking spot")
		return
	}

	c.JSON(http.StatusOK, spot)
}

// Delete handles DELETE /parking-spot/delete/:id.
func (h *ParkingSpotHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "Failed to delete parking spot")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: DeletedMessage})
}

// Update handles PUT /parking-spot/update/:id.
// An id with no assignment is reported as 404 even when the payload is bad.
func (h *ParkingSpotHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	req, err := bindParkingSpot(c)
	if err != nil {
		if _, findErr := h.service.Get(c.Request.Context(), id); findErr != nil {
			respondServiceError(c, findErr, "Failed to query parking spot")
			return
		}
		respondBindError(c, err)
		return
	}

	spot, err := h.service.Update(c.Request.Context(), id, req.toParkingSpot())
	if err != nil {
		respondServiceError(c, err, "Failed to update parking spot")
		return
	}

	c.JSON(http.StatusOK, UpdateResponse{
		Message:     UpdatedMessage,
		ParkingSpot: spot,
	})
}

// toParkingSpot maps the payload field by field. ID and RegistrationDate are
// never taken from a client.
func (r *ParkingSpotRequest) toParkingSpot() *models.ParkingSpot {
	return &models.ParkingSpot{
		ParkingSpotNumber: r.ParkingSpotNumber,
		LicensePlateCar:   r.LicensePlateCar,
		BrandCar:          r.BrandCar,
		ModelCar:          r.ModelCar,
		ColorCar:          r.ColorCar,
		Apartment:         r.Apartment,
		Block:             r.Block,
	}
}

func (q ListQuery) toPageRequest() models.PageRequest {
	req := models.DefaultPageRequest()

	if page, err := strconv.Atoi(strings.TrimSpace(q.Page)); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(strings.TrimSpace(q.Size)); err == nil {
		req.Size = size
	}

	if q.Sort != "" {
		field, direction, _ := strings.Cut(q.Sort, ",")
		req.Sort = models.SortField(strings.ToLower(strings.TrimSpace(field)))
		req.Direction = models.ParseSortDirection(direction)
	}

	return req
}

func bindParkingSpot(c *gin.Context) (*ParkingSpotRequest, error) {
	var req ParkingSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func respondBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.BadRequest(c, "Invalid request body", nil)
}

func parseID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid id", map[string]interface{}{
			"id": raw,
		})
		return 0, false
	}
	return id, true
}

// respondServiceError maps service sentinels to HTTP responses.
func respondServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrParkingSpotNotFound):
		apierrors.NotFound(c, NotFoundMessage)
	case services.IsConflict(err):
		apierrors.Conflict(c, conflictMessage(err))
	case errors.Is(err, services.ErrInvalidParkingSpot):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, message, err)
	}
}

func conflictMessage(err error) string {
	for _, conflict := range []error{
		services.ErrLicensePlateInUse,
		services.ErrSpotNumberInUse,
		services.ErrApartmentBlockRegistered,
	} {
		if errors.Is(err, conflict) {
			return conflict.Error()
		}
	}
	return err.Error()
}
