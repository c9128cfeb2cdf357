package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
	"socialsync/internal/repository"
	"socialsync/internal/service/engagement"
)

func newEngagementRouter(svc *MockEngagementService) *gin.Engine {
	h := NewEngagementHandler(svc)
	router := gin.New()
	router.Use(withUser("user123"))
	router.POST("/engagement", h.Track)
	router.GET("/engagement/:type/:id", h.GetAggregate)
	return router
}

func TestEngagementHandler_GetAggregate(t *testing.T) {
	svc := new(MockEngagementService)
	router := newEngagementRouter(svc)

	click := model.MetricClick
	agg := &engagement.Aggregate{
		EntityType: "product",
		EntityID:   "p1",
		MetricType: &click,
		ByPlatform: []repository.PlatformMetricCount{{Platform: model.PlatformFacebook, Count: 3}},
		Total:      3,
	}
	svc.On("Aggregate", mock.Anything, "product", "p1", mock.MatchedBy(func(mt *model.MetricType) bool {
		return mt != nil && *mt == model.MetricClick
	})).Return(agg, nil)
	svc.On("Aggregate", mock.Anything, "product", "p1", (*model.MetricType)(nil)).Return(&engagement.Aggregate{Total: 9}, nil)

	w := performRequest(router, http.MethodGet, "/engagement/product/p1?metric=click", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got engagement.Aggregate
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, int64(3), got.Total)

	w = performRequest(router, http.MethodGet, "/engagement/product/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, int64(9), got.Total)

	w = performRequest(router, http.MethodGet, "/engagement/product/p1?metric=like", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEngagementHandler_GetAggregateFailure(t *testing.T) {
	svc := new(MockEngagementService)
	router := newEngagementRouter(svc)
	svc.On("Aggregate", mock.Anything, "vendor", "v1", (*model.MetricType)(nil)).
		Return(nil, &apperr.AggregationError{Message: "Failed to aggregate engagement", Cause: errors.New("db down")})

	w := performRequest(router, http.MethodGet, "/engagement/vendor/v1", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to aggregate engagement", decode(t, w).Message)
}

func TestEngagementHandler_Track(t *testing.T) {
	t.Run("records the caller", func(t *testing.T) {
		svc := new(MockEngagementService)
		router := newEngagementRouter(svc)
		svc.On("TrackEngagement", mock.Anything, mock.MatchedBy(func(e *engagement.Event) bool {
			return e.EntityType == "product" &&
				e.MetricType == model.MetricImpression &&
				e.Platform == model.PlatformInstagram &&
				e.UserID != nil && *e.UserID == "user123"
		})).Return(&model.EngagementMetric{ID: 42, MetricType: model.MetricImpression}, nil)

		w := performRequest(router, http.MethodPost, "/engagement", map[string]string{
			"entity_type": "product",
			"entity_id":   "p1",
			"metric_type": "impression",
			"platform":    "Instagram",
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var metric model.EngagementMetric
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &metric))
		assert.Equal(t, int64(42), metric.ID)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := new(MockEngagementService)
		router := newEngagementRouter(svc)

		w := performRequest(router, http.MethodPost, "/engagement", `{"entity_type":"product"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "TrackEngagement", mock.Anything, mock.Anything)
	})

	t.Run("unknown metric type", func(t *testing.T) {
		svc := new(MockEngagementService)
		router := newEngagementRouter(svc)
		svc.On("TrackEngagement", mock.Anything, mock.Anything).
			Return(nil, apperr.NewValidationError("unknown metric type \"like\""))

		w := performRequest(router, http.MethodPost, "/engagement", map[string]string{
			"entity_type": "product",
			"entity_id":   "p1",
			"metric_type": "like",
			"platform":    "facebook",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
