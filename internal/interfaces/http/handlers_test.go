package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isdlab/reimburse/internal/report"
	"github.com/isdlab/reimburse/internal/repository"
	"github.com/isdlab/reimburse/internal/storage"
	"github.com/isdlab/reimburse/pkg/database"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations("../../../migrations"))

	claims := repository.NewClaimRepository(db.DB, logger)
	items := repository.NewClaimItemRepository(db.DB, logger)

	receipts, err := storage.NewReceiptStore(t.TempDir(), logger)
	require.NoError(t, err)

	templatePath := filepath.Join(t.TempDir(), "template.xlsx")
	require.NoError(t, report.WriteDefaultTemplate(templatePath))
	filler, err := report.NewExcelFiller(templatePath, report.ClaimantIdentity{
		Name: "Chan Tai Man", StaffID: "20251234",
	}, logger)
	require.NoError(t, err)

	assembler := report.NewAssembler(repository.NewReportSource(claims, items), filler, logger)
	handlers := NewHandlers(db, claims, items, receipts, assembler, logger)

	return NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, handlers, logger)
}

func doRequest(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// claimForm builds a multipart create/update request body.
func claimForm(t *testing.T, fields map[string]string, receiptName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if receiptName != "" {
		fw, err := mw.CreateFormFile("receipt", receiptName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 test"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func defaultClaimFields() map[string]string {
	return map[string]string{
		"alias_name":       "conference-may",
		"from_date":        "2025-05-03",
		"to_date":          "2025-05-05",
		"total_amount":     "1285.50",
		"total_currency":   "HKD",
		"expense_group":    "Registration/Conference/Visa Fee",
		"business_purpose": "ICML registration",
		"items": `[
			{"description": "Registration fee", "amount": 1200, "currency": "HKD"},
			{"description": "Taxi", "amount": 85.50, "currency": "RMB", "justification": "Late arrival"}
		]`,
	}
}

func createClaim(t *testing.T, srv *Server, fields map[string]string, receiptName string) map[string]interface{} {
	t.Helper()
	body, contentType := claimForm(t, fields, receiptName)
	req := httptest.NewRequest(http.MethodPost, "/api/claims", body)
	req.Header.Set("Content-Type", contentType)

	w := doRequest(t, srv, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
	return resp.Data.(map[string]interface{})
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)
	w := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
}

func TestGetMeta(t *testing.T) {
	srv := newTestServer(t)
	w := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/meta", nil))
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.NotEmpty(t, data["expense_groups"])
	assert.NotEmpty(t, data["currencies"])
}

func TestClaimLifecycle(t *testing.T) {
	srv := newTestServer(t)

	created := createClaim(t, srv, defaultClaimFields(), "invoice.pdf")
	claimID := created["claim_id"].(string)
	require.NotEmpty(t, claimID)
	assert.Len(t, created["items"].([]interface{}), 2)
	assert.Equal(t, true, created["amounts_match"])

	t.Run("get claim", func(t *testing.T) {
		w := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/claims/"+claimID, nil))
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]interface{})
		assert.Equal(t, "conference-may", data["alias_name"])
		assert.NotEmpty(t, data["receipt_path"])
	})

	t.Run("list claims", func(t *testing.T) {
		w := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/claims", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeResponse(t, w).Data.([]interface{}), 1)
	})

	t.Run("update claim", func(t *testing.T) {
		fields := defaultClaimFields()
		fields["business_purpose"] = "ICML registration and travel"
		delete(fields, "items")
		body, contentType := claimForm(t, fields, "")
		req := httptest.NewRequest(http.MethodPut, "/api/claims/"+claimID, body)
		req.Header.Set("Content-Type", contentType)

		w := doRequest(t, srv, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeResponse(t, w).Data.(map[string]interface{})
		assert.Equal(t, "ICML registration and travel", data["business_purpose"])
		assert.Len(t, data["items"].([]interface{}), 2)
	})

	t.Run("delete claim", func(t *testing.T) {
		w := doRequest(t, srv, httptest.NewRequest(http.MethodDelete, "/api/claims/"+claimID, nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/claims/"+claimID, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestClaimValidation(t *testing.T) {
	srv := newTestServer(t)

	post := func(fields map[string]string) *httptest.ResponseRecorder {
		body, contentType := claimForm(t, fields, "")
		req := httptest.NewRequest(http.MethodPost, "/api/claims", body)
		req.Header.Set("Content-Type", contentType)
		return doRequest(t, srv, req)
	}

	t.Run("missing required fields", func(t *testing.T) {
		fields := defaultClaimFields()
		delete(fields, "from_date")
		assert.Equal(t, http.StatusBadRequest, post(fields).Code)
	})

	t.Run("reversed date range", func(t *testing.T) {
		fields := defaultClaimFields()
		fields["from_date"] = "2025-05-10"
		fields["to_date"] = "2025-05-01"
		assert.Equal(t, http.StatusBadRequest, post(fields).Code)
	})

	t.Run("unknown currency", func(t *testing.T) {
		fields := defaultClaimFields()
		fields["total_currency"] = "XXX"
		assert.Equal(t, http.StatusBadRequest, post(fields).Code)
	})

	t.Run("unknown expense group", func(t *testing.T) {
		fields := defaultClaimFields()
		fields["expense_group"] = "Yachts"
		assert.Equal(t, http.StatusBadRequest, post(fields).Code)
	})

	t.Run("unsupported receipt type", func(t *testing.T) {
		body, contentType := claimForm(t, defaultClaimFields(), "malware.exe")
		req := httptest.NewRequest(http.MethodPost, "/api/claims", body)
		req.Header.Set("Content-Type", contentType)
		assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, req).Code)
	})

	t.Run("oversized receipt", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range defaultClaimFields() {
			require.NoError(t, mw.WriteField(k, v))
		}
		fw, err := mw.CreateFormFile("receipt", "huge.pdf")
		require.NoError(t, err)
		_, err = fw.Write(bytes.Repeat([]byte("x"), 16<<20+1))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/claims", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, doRequest(t, srv, req).Code)
	})
}

func TestItemEndpoints(t *testing.T) {
	srv := newTestServer(t)
	fields := defaultClaimFields()
	delete(fields, "items")
	created := createClaim(t, srv, fields, "")
	claimID := created["claim_id"].(string)

	postItem := func(payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/claims/"+claimID+"/items", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		return doRequest(t, srv, req)
	}

	w := postItem(`{"description": "Registration fee", "amount": 1200, "currency": "HKD"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemID := int64(decodeResponse(t, w).Data.(map[string]interface{})["item_id"].(float64))

	t.Run("invalid item payload", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, postItem(`{"description": "x"}`).Code)
		assert.Equal(t, http.StatusBadRequest, postItem(`{"description": "x", "amount": 5, "currency": "XXX"}`).Code)
	})

	t.Run("update item", func(t *testing.T) {
		payload := `{"description": "Registration fee (late)", "amount": 1300, "currency": "HKD"}`
		url := fmt.Sprintf("/api/claims/%s/items/%d", claimID, itemID)
		req := httptest.NewRequest(http.MethodPut, url, bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")

		w := doRequest(t, srv, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeResponse(t, w).Data.(map[string]interface{})
		assert.Equal(t, "Registration fee (late)", data["description"])
	})

	t.Run("item under wrong claim 404s", func(t *testing.T) {
		other := createClaim(t, srv, fields, "")
		url := fmt.Sprintf("/api/claims/%s/items/%d", other["claim_id"].(string), itemID)
		w := doRequest(t, srv, httptest.NewRequest(http.MethodDelete, url, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete item", func(t *testing.T) {
		url := fmt.Sprintf("/api/claims/%s/items/%d", claimID, itemID)
		w := doRequest(t, srv, httptest.NewRequest(http.MethodDelete, url, nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/claims/"+claimID+"/items", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decodeResponse(t, w).Data)
	})
}

func TestReportEndpoints(t *testing.T) {
	srv := newTestServer(t)

	t.Run("months empty before any claim", func(t *testing.T) {
		w := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/reports/months", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decodeResponse(t, w).Data)
	})

	mayClaim := createClaim(t, srv, defaultClaimFields(), "invoice.pdf")
	mayClaimID := mayClaim["claim_id"].(string)

	june := defaultClaimFields()
	june["from_date"] = "2025-06-01"
	june["to_date"] = "2025-06-02"
	createClaim(t, srv, june, "")

	postReport := func(payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		return doRequest(t, srv, req)
	}

	t.Run("months lists newest first", func(t *testing.T) {
		w := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/reports/months", nil))
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.([]interface{})
		require.Len(t, data, 2)
		first := data[0].(map[string]interface{})
		second := data[1].(map[string]interface{})
		assert.Equal(t, "06-2025", first["selector"])
		assert.Equal(t, "June 2025", first["label"])
		assert.Equal(t, "05-2025", second["selector"])
	})

	t.Run("excel download", func(t *testing.T) {
		w := postReport(`{"type": "excel"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "isd_reimbursement_report.xlsx")
		assert.NotEmpty(t, w.Body.Bytes())
	})

	t.Run("monthly excel download", func(t *testing.T) {
		w := postReport(`{"type": "excel", "month_year": "05-2025"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "isd_reimbursement_05_2025.xlsx")
	})

	t.Run("items csv download", func(t *testing.T) {
		w := postReport(`{"type": "items_csv", "month_year": "05-2025"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Particulars")
	})

	t.Run("claims csv download", func(t *testing.T) {
		w := postReport(`{"type": "claims_csv"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "financial_expense_combined.csv")
	})

	t.Run("receipts archive", func(t *testing.T) {
		w := postReport(`{"type": "receipts_zip"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	})

	t.Run("comprehensive archive", func(t *testing.T) {
		w := postReport(`{"type": "comprehensive_zip"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "comprehensive_report.zip")
	})

	t.Run("claim id scoped download", func(t *testing.T) {
		w := postReport(fmt.Sprintf(`{"type": "excel", "claim_ids": [%q]}`, mayClaimID))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "isd_reimbursement_report.xlsx")
	})

	t.Run("month and claim ids rejected together", func(t *testing.T) {
		w := postReport(fmt.Sprintf(`{"type": "excel", "month_year": "05-2025", "claim_ids": [%q]}`, mayClaimID))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid month selector", func(t *testing.T) {
		w := postReport(`{"type": "excel", "month_year": "2025-05"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("month without data", func(t *testing.T) {
		w := postReport(`{"type": "excel", "month_year": "01-2020"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown report type", func(t *testing.T) {
		w := postReport(`{"type": "pdf"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
