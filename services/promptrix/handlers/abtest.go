// Package handlers implements the HTTP endpoints for A/B tests: create
// and fetch test definitions, run inputs through both variants, and
// read stored results and aggregate statistics.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fatinm1/promptrix/services/promptrix/datatypes"
	"github.com/fatinm1/promptrix/services/promptrix/evaluation"
	"github.com/fatinm1/promptrix/services/promptrix/middleware"
	"github.com/fatinm1/promptrix/services/promptrix/observability"
	"github.com/fatinm1/promptrix/services/promptrix/storage"
)

var abtestTracer trace.Tracer = otel.Tracer("promptrix.handlers")

// callerID returns the authenticated user for attribution fields.
func callerID(c *gin.Context) string {
	if info := middleware.GetAuthInfo(c); info != nil {
		return info.UserID
	}
	return ""
}

// HandleCreateTest creates an A/B test definition in DRAFT state.
func HandleCreateTest(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := abtestTracer.Start(c.Request.Context(), "HandleCreateTest")
		defer span.End()

		var req datatypes.CreateTestRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the create test request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()

		test := datatypes.ABTest{
			ID:        uuid.NewString(),
			Name:      req.Name,
			VariantA:  req.VariantA,
			VariantB:  req.VariantB,
			Status:    datatypes.RunStatusDraft,
			CreatedBy: callerID(c),
			CreatedAt: time.Now().UTC(),
		}
		if err := store.CreateTest(ctx, test); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to store test", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store test"})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.TestsCreatedTotal.Inc()
		}
		slog.Info("Created A/B test", "test_id", test.ID, "name", test.Name)
		c.JSON(http.StatusCreated, datatypes.CreateTestResponse{
			RequestID: req.RequestID,
			Test:      test,
			Timestamp: time.Now().UTC(),
		})
	}
}

// HandleGetTest returns a test definition with its current run status.
func HandleGetTest(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		test, err := store.GetTest(c.Request.Context(), c.Param("testId"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "test not found"})
				return
			}
			slog.Error("Failed to load test", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load test"})
			return
		}
		c.JSON(http.StatusOK, test)
	}
}

// HandleRunTest runs every input in the request through both variants
// of the test. Failed inputs are reported in the failure list; they
// never abort the rest of the run and never carry scores.
func HandleRunTest(runner *evaluation.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := abtestTracer.Start(c.Request.Context(), "HandleRunTest")
		defer span.End()

		var req datatypes.RunTestRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the run test request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()

		testID := c.Param("testId")
		summary, err := runner.Run(ctx, testID, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "test not found"})
				return
			}
			slog.Error("Test run failed", "test_id", testID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, datatypes.RunTestResponse{
			RequestID: req.RequestID,
			TestID:    testID,
			Status:    summary.Status,
			Results:   summary.Results,
			Failures:  summary.Failures,
			Stats:     summary.Stats,
			Timestamp: time.Now().UTC(),
		})
	}
}

// HandleGetResults returns the stored results of a test, oldest first.
func HandleGetResults(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		testID := c.Param("testId")
		if _, err := store.GetTest(ctx, testID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "test not found"})
				return
			}
			slog.Error("Failed to load test", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load test"})
			return
		}

		results, err := store.ListResults(ctx, testID)
		if err != nil {
			slog.Error("Failed to list results", "test_id", testID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
			return
		}
		if results == nil {
			results = []datatypes.PairwiseResult{}
		}
		c.JSON(http.StatusOK, datatypes.ResultsResponse{TestID: testID, Results: results})
	}
}

// HandleGetStats recomputes the aggregate over every stored result of
// a test. Zero results is a valid case and yields all-zero statistics
// with an overall TIE.
func HandleGetStats(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		testID := c.Param("testId")
		if _, err := store.GetTest(ctx, testID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "test not found"})
				return
			}
			slog.Error("Failed to load test", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load test"})
			return
		}

		results, err := store.ListResults(ctx, testID)
		if err != nil {
			slog.Error("Failed to list results", "test_id", testID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
			return
		}
		c.JSON(http.StatusOK, datatypes.StatsResponse{
			TestID: testID,
			Stats:  evaluation.Aggregate(results),
		})
	}
}

// HandleHealth is the liveness probe.
func HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
