package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/invoicedesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatedLine struct {
	Type     string          `json:"type" binding:"required,invoice_type"`
	Name     string          `json:"name" binding:"max=5"`
	Quantity decimal.Decimal `json:"quantity" binding:"gt=0"`
}

func bindLine(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	SetupValidator()
	SetupValidator()

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var line validatedLine
		if err := c.ShouldBindJSON(&line); err != nil {
			c.JSON(http.StatusBadRequest, FormatValidationErrors(err, "req-9"))
			return
		}
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSetupValidator(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"valid", `{"type":"deposit","name":"Drill","quantity":"1.5"}`, nil},
		{"pseudo type", `{"type":"done","quantity":"1"}`, []string{"type"}},
		{"missing type", `{"quantity":"1"}`, []string{"type"}},
		{"zero quantity", `{"type":"deposit","quantity":"0"}`, []string{"quantity"}},
		{"negative quantity and long name", `{"type":"return","name":"Grinder","quantity":"-2"}`, []string{"name", "quantity"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := bindLine(t, tt.body)
			if tt.fields == nil {
				assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
				return
			}
			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			assert.Equal(t, "req-9", resp.Error.RequestID)

			fields := make([]string, 0, len(resp.Error.Details))
			for _, d := range resp.Error.Details {
				fields = append(fields, d.Field)
				assert.NotEmpty(t, d.Message)
			}
			assert.ElementsMatch(t, tt.fields, fields)
		})
	}
}

func TestFormatValidationErrorsMalformedBody(t *testing.T) {
	w := bindLine(t, `{"type":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
	assert.NotEmpty(t, resp.Error.Message)
}
