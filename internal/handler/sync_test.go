package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"stocklink/internal/dto"
	"stocklink/internal/middleware"
	"stocklink/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPullService struct {
	result *dto.SyncResult
	err    error
}

func (s *stubPullService) Pull(_ context.Context, _, _, _ uuid.UUID, _ service.PullOptions) (*dto.SyncResult, error) {
	return s.result, s.err
}

func pullContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest("POST", "/api/sync/pull/x/y", nil)
	c.Params = gin.Params{
		{Key: "storeId", Value: uuid.New().String()},
		{Key: "integrationId", Value: uuid.New().String()},
	}
	c.Set(middleware.ClaimsKey, &middleware.JWTClaims{TenantID: uuid.New().String()})
	return c, rec
}

func TestPullResponseNestsResult(t *testing.T) {
	h := NewSyncHandler(&stubPullService{
		result: &dto.SyncResult{Success: 3, Skipped: 1, Errors: []dto.SKUError{}},
	}, nil)

	c, rec := pullContext(t)
	h.Pull(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "result")

	var result dto.SyncResult
	require.NoError(t, json.Unmarshal(body["result"], &result))
	assert.Equal(t, 3, result.Success)
	assert.Equal(t, 1, result.Skipped)
}

func TestPullIntegrationDownReturnsPartialResult(t *testing.T) {
	h := NewSyncHandler(&stubPullService{
		result: &dto.SyncResult{Success: 2, Errors: []dto.SKUError{}},
		err:    service.ErrIntegrationDown,
	}, nil)

	c, rec := pullContext(t)
	h.Pull(c)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "result")
	require.Contains(t, body, "detail")
}
