package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"coolmon/pkg/database"
	"coolmon/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PollTrigger lets the API surface nudge the scheduler for immediate and
// reconfigured polling.
type PollTrigger interface {
	PollNow(exchangerID int64, ip string)
	Reschedule(intervalSeconds int)
}

// ConnectionTester probes device reachability with the current credentials.
type ConnectionTester interface {
	TestConnection(ctx context.Context, ip string) bool
}

// ExchangerHandler owns the heat-exchanger inventory routes.
type ExchangerHandler struct {
	repo    database.Repository[models.HeatExchanger]
	trigger PollTrigger
	tester  ConnectionTester
}

func NewExchangerHandler(db *gorm.DB, trigger PollTrigger, tester ConnectionTester) *ExchangerHandler {
	return &ExchangerHandler{
		repo:    database.NewGormRepository[models.HeatExchanger](db),
		trigger: trigger,
		tester:  tester,
	}
}

func (handler *ExchangerHandler) Register(g *gin.RouterGroup) {
	r := g.Group("/heat-exchangers")
	r.GET("", handler.list)
	r.GET("/:id", handler.get)
	r.POST("", handler.create)
	r.PUT("/:id", handler.update)
	r.DELETE("/:id", handler.remove)
	r.POST("/:id/test-connection", handler.testConnection)
}

func (handler *ExchangerHandler) list(c *gin.Context) {
	exchangers, err := handler.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, exchangers)
}

func (handler *ExchangerHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	exchanger, err := handler.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "heat exchanger not found")
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, exchanger)
}

// create registers an exchanger and polls it immediately so its snapshot
// does not wait out a full interval.
func (handler *ExchangerHandler) create(c *gin.Context) {
	var exchanger models.HeatExchanger
	if err := c.ShouldBindJSON(&exchanger); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := handler.repo.Create(c.Request.Context(), &exchanger)
	if err != nil {
		respondError(c, http.StatusConflict, err.Error())
		return
	}

	if created.IsActive {
		handler.trigger.PollNow(created.ID, created.RscmIP)
	}
	c.JSON(http.StatusCreated, created)
}

// update applies inventory changes; an address or activation change
// triggers an immediate re-poll.
func (handler *ExchangerHandler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	existing, err := handler.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "heat exchanger not found")
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	var incoming models.HeatExchanger
	if err := c.ShouldBindJSON(&incoming); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	incoming.ID = id

	updated, err := handler.repo.Update(c.Request.Context(), id, &incoming)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	addressChanged := updated.RscmIP != existing.RscmIP
	activated := updated.IsActive && !existing.IsActive
	if updated.IsActive && (addressChanged || activated) {
		handler.trigger.PollNow(updated.ID, updated.RscmIP)
	}
	c.JSON(http.StatusOK, updated)
}

func (handler *ExchangerHandler) remove(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := handler.repo.Delete(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusNotFound, "heat exchanger not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Heat exchanger deleted", "id": id})
}

func (handler *ExchangerHandler) testConnection(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	exchanger, err := handler.repo.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "heat exchanger not found")
		return
	}
	reachable := handler.tester.TestConnection(c.Request.Context(), exchanger.RscmIP)
	c.JSON(http.StatusOK, gin.H{"id": id, "rscm_ip": exchanger.RscmIP, "reachable": reachable})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
