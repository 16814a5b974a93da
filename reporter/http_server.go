// This is a http type of reporter.
// It publishes the live pipeline status and the failure journal
// on the http routes.

package reporter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
	"github.com/sunshine-protocol/bounty-bot/bountysync"
	"github.com/sunshine-protocol/bounty-bot/journal"
)

const (
	ROUTE_HEALTH   = "/health"
	ROUTE_STATUS   = "/status"
	ROUTE_FAILURES = "/failures"

	shutdownTimeout = 5 * time.Second
)

// StatusSource is implemented by bountysync.Supervisor.
type StatusSource interface {
	Snapshot() []bountysync.KindStatus
}

// FailureLister is implemented by journal.Journal.
type FailureLister interface {
	List(ctx context.Context, kind string, limit int) ([]*journal.Failure, error)
	Count(ctx context.Context, kind string) (int, error)
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	status   StatusSource
	failures FailureLister // optional
}

func NewHttpReporter(serverIP string, serverPort string, status StatusSource, failures FailureLister) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		status:     status,
		failures:   failures,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(ROUTE_HEALTH, Health)
	router.GET(ROUTE_STATUS, h.Status)
	router.GET(ROUTE_FAILURES, h.Failures)

	return router
}

// Run serves until ctx is done, then shuts the server down.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.serverIP + ":" + h.serverPort,
		Handler: h.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", srv.Addr).Info("starting http reporter")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("stopping http reporter")
	return nil
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status publishes the per-kind state and counters.
func (h *HttpReporter) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.status.Snapshot()})
}

// Failures publishes the newest journaled failures, optionally of one kind.
func (h *HttpReporter) Failures(c *gin.Context) {
	if h.failures == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "failure journal disabled"})
		return
	}

	kind := c.Query("kind")
	if kind != "" {
		if _, err := agreement.ParseEventKind(kind); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	limit := journal.DefaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	failures, err := h.failures.List(ctx, kind, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := h.failures.Count(ctx, kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if failures == nil {
		failures = []*journal.Failure{}
	}
	c.JSON(http.StatusOK, gin.H{"data": failures, "total": total})
}
