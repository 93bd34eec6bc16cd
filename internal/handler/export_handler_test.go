package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
)

type fakeExportSrv struct {
	query  models.DefaulterQuery
	format string
	err    error
}

func (f *fakeExportSrv) ExportDefaulters(_ context.Context, query models.DefaulterQuery, format string) (*dto.ExportResult, error) {
	f.query = query
	f.format = format
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ExportResult{Filename: "defaulters-c1-20260310.csv", ContentType: "text/csv", Body: []byte("Rank\n")}, nil
}

func TestExportHandlerDefaulters(t *testing.T) {
	srv := &fakeExportSrv{}
	handler := NewExportHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/classes/c1/defaulters/export?format=csv&threshold=2", "", gin.Param{Key: "id", Value: "c1"})
	handler.Defaulters(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="defaulters-c1-20260310.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Rank\n", rec.Body.String())
	assert.Equal(t, "csv", srv.format)
	assert.Equal(t, 2, srv.query.Threshold)
}

func TestExportHandlerUnknownFormat(t *testing.T) {
	handler := NewExportHandler(&fakeExportSrv{err: appErrors.Clone(appErrors.ErrValidation, "unsupported export format")})

	c, rec := newTestContext(http.MethodGet, "/classes/c1/defaulters/export?format=xlsx", "", gin.Param{Key: "id", Value: "c1"})
	handler.Defaulters(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
