package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdlab/reimburse/internal/models"
	"github.com/isdlab/reimburse/internal/report"
	"github.com/isdlab/reimburse/internal/repository"
	"github.com/isdlab/reimburse/internal/storage"
	"github.com/isdlab/reimburse/pkg/database"
	"github.com/isdlab/reimburse/pkg/utils"
)

const dateLayout = "2006-01-02"

// maxReceiptSize caps uploaded receipt files at 16 MiB.
const maxReceiptSize = 16 << 20

// Handlers contains all HTTP request handlers
type Handlers struct {
	db        *database.DB
	claims    *repository.ClaimRepository
	items     *repository.ClaimItemRepository
	receipts  *storage.ReceiptStore
	assembler *report.Assembler
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	db *database.DB,
	claims *repository.ClaimRepository,
	items *repository.ClaimItemRepository,
	receipts *storage.ReceiptStore,
	assembler *report.Assembler,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		db:        db,
		claims:    claims,
		items:     items,
		receipts:  receipts,
		assembler: assembler,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ClaimResponse represents a claim with its items in API responses
type ClaimResponse struct {
	*models.Claim
	Items        []*models.ClaimItem `json:"items"`
	ItemsTotal   float64             `json:"items_total"`
	AmountsMatch bool                `json:"amounts_match"`
}

// itemRequest carries claim item fields on create and update
type itemRequest struct {
	Description   string   `json:"description" binding:"required"`
	Amount        float64  `json:"amount" binding:"required,gt=0"`
	Currency      string   `json:"currency" binding:"required"`
	PaidAmount    *float64 `json:"paid_amount"`
	PaidCurrency  string   `json:"paid_currency"`
	Justification string   `json:"justification"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"service":   "reimburse",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// GetMeta handles GET /api/meta, serving the option lists the claim form
// needs
func (h *Handlers) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"expense_groups": models.ExpenseGroups,
			"currencies":     models.Currencies,
		},
	})
}

// CreateClaim handles POST /api/claims. The request is a multipart form
// with the claim fields, an optional receipt file, and an optional items
// JSON array; the claim and its items are stored in one transaction.
func (h *Handlers) CreateClaim(c *gin.Context) {
	claim, items, ok := h.bindClaimForm(c)
	if !ok {
		return
	}
	claim.ClaimID = uuid.New().String()

	if path, ok := h.saveReceiptUpload(c, claim.ClaimID); ok {
		claim.ReceiptPath = path
	} else {
		return
	}

	err := h.db.WithTransaction(func(tx *sql.Tx) error {
		if err := h.claims.Create(c.Request.Context(), tx, claim); err != nil {
			return err
		}
		for _, item := range items {
			item.ClaimID = claim.ClaimID
			if err := h.items.Create(c.Request.Context(), tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.receipts.Remove(claim.ReceiptPath)
		h.serverError(c, "failed to create claim", err)
		return
	}

	h.logger.Info("Claim created",
		zap.String("claim_id", claim.ClaimID),
		zap.Int("items", len(items)))

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    h.claimResponse(claim, items),
	})
}

// ListClaims handles GET /api/claims with optional limit/offset paging
func (h *Handlers) ListClaims(c *gin.Context) {
	var page struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	if page.Limit <= 0 || page.Limit > 100 {
		page.Limit = 50
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	claims, err := h.claims.List(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		h.serverError(c, "failed to list claims", err)
		return
	}

	responses := make([]*ClaimResponse, 0, len(claims))
	for _, claim := range claims {
		items, err := h.items.ItemsByClaim(c.Request.Context(), claim.ClaimID)
		if err != nil {
			h.serverError(c, "failed to load claim items", err)
			return
		}
		responses = append(responses, h.claimResponse(claim, items))
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: responses})
}

// GetClaim handles GET /api/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	claim, ok := h.loadClaim(c)
	if !ok {
		return
	}

	items, err := h.items.ItemsByClaim(c.Request.Context(), claim.ClaimID)
	if err != nil {
		h.serverError(c, "failed to load claim items", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: h.claimResponse(claim, items)})
}

// UpdateClaim handles PUT /api/claims/:id. The request mirrors the create
// form; a newly uploaded receipt replaces the stored one.
func (h *Handlers) UpdateClaim(c *gin.Context) {
	existing, ok := h.loadClaim(c)
	if !ok {
		return
	}

	claim, _, ok := h.bindClaimForm(c)
	if !ok {
		return
	}
	claim.ClaimID = existing.ClaimID
	claim.ReceiptPath = existing.ReceiptPath
	claim.CreatedAt = existing.CreatedAt

	oldReceipt := ""
	if path, ok := h.saveReceiptUpload(c, claim.ClaimID); ok {
		if path != "" {
			oldReceipt = existing.ReceiptPath
			claim.ReceiptPath = path
		}
	} else {
		return
	}

	if err := h.claims.Update(c.Request.Context(), nil, claim); err != nil {
		h.serverError(c, "failed to update claim", err)
		return
	}
	if oldReceipt != "" && oldReceipt != claim.ReceiptPath {
		if err := h.receipts.Remove(oldReceipt); err != nil {
			h.logger.Warn("Failed to remove replaced receipt", zap.String("path", oldReceipt), zap.Error(err))
		}
	}

	items, err := h.items.ItemsByClaim(c.Request.Context(), claim.ClaimID)
	if err != nil {
		h.serverError(c, "failed to load claim items", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: h.claimResponse(claim, items)})
}

// DeleteClaim handles DELETE /api/claims/:id. Items cascade with the claim
// and the stored receipt file is removed.
func (h *Handlers) DeleteClaim(c *gin.Context) {
	claim, ok := h.loadClaim(c)
	if !ok {
		return
	}

	if err := h.claims.Delete(c.Request.Context(), nil, claim.ClaimID); err != nil {
		h.serverError(c, "failed to delete claim", err)
		return
	}
	if err := h.receipts.Remove(claim.ReceiptPath); err != nil {
		h.logger.Warn("Failed to remove receipt file",
			zap.String("claim_id", claim.ClaimID),
			zap.Error(err))
	}

	h.logger.Info("Claim deleted", zap.String("claim_id", claim.ClaimID))
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListItems handles GET /api/claims/:id/items
func (h *Handlers) ListItems(c *gin.Context) {
	claim, ok := h.loadClaim(c)
	if !ok {
		return
	}

	items, err := h.items.ItemsByClaim(c.Request.Context(), claim.ClaimID)
	if err != nil {
		h.serverError(c, "failed to load claim items", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// CreateItem handles POST /api/claims/:id/items
func (h *Handlers) CreateItem(c *gin.Context) {
	claim, ok := h.loadClaim(c)
	if !ok {
		return
	}

	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid item payload: %v", err))
		return
	}
	if !models.ValidCurrency(req.Currency) {
		h.badRequest(c, fmt.Sprintf("unknown currency: %s", req.Currency))
		return
	}

	item := &models.ClaimItem{
		ClaimID:       claim.ClaimID,
		Description:   utils.SanitizeString(req.Description),
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaidAmount:    req.PaidAmount,
		PaidCurrency:  req.PaidCurrency,
		Justification: utils.SanitizeString(req.Justification),
	}
	if err := h.items.Create(c.Request.Context(), nil, item); err != nil {
		h.serverError(c, "failed to create claim item", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: item})
}

// UpdateItem handles PUT /api/claims/:id/items/:item_id
func (h *Handlers) UpdateItem(c *gin.Context) {
	item, ok := h.loadItem(c)
	if !ok {
		return
	}

	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid item payload: %v", err))
		return
	}
	if !models.ValidCurrency(req.Currency) {
		h.badRequest(c, fmt.Sprintf("unknown currency: %s", req.Currency))
		return
	}

	item.Description = utils.SanitizeString(req.Description)
	item.Amount = req.Amount
	item.Currency = req.Currency
	item.PaidAmount = req.PaidAmount
	item.PaidCurrency = req.PaidCurrency
	item.Justification = utils.SanitizeString(req.Justification)

	if err := h.items.Update(c.Request.Context(), nil, item); err != nil {
		h.serverError(c, "failed to update claim item", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: item})
}

// DeleteItem handles DELETE /api/claims/:id/items/:item_id
func (h *Handlers) DeleteItem(c *gin.Context) {
	item, ok := h.loadItem(c)
	if !ok {
		return
	}

	if err := h.items.Delete(c.Request.Context(), nil, item.ItemID); err != nil {
		h.serverError(c, "failed to delete claim item", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListReportMonths handles GET /api/reports/months
func (h *Handlers) ListReportMonths(c *gin.Context) {
	months, err := h.assembler.AvailableMonths(c.Request.Context())
	if err != nil {
		if errors.Is(err, report.ErrNothingToReport) {
			c.JSON(http.StatusOK, Response{Success: true, Data: []report.MonthOption{}})
			return
		}
		h.serverError(c, "failed to list report months", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: months})
}

// generateReportRequest selects a report artifact, scoped to one month or
// an explicit claim set
type generateReportRequest struct {
	Type      string   `json:"type" binding:"required"`
	MonthYear string   `json:"month_year"`
	ClaimIDs  []string `json:"claim_ids"`
}

// GenerateReport handles POST /api/reports, streaming the selected artifact
// as a download
func (h *Handlers) GenerateReport(c *gin.Context) {
	var req generateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid report request: %v", err))
		return
	}
	if req.MonthYear != "" && len(req.ClaimIDs) > 0 {
		h.badRequest(c, "month_year and claim_ids are mutually exclusive")
		return
	}

	ctx := c.Request.Context()
	scope := report.Scope{Month: req.MonthYear, ClaimIDs: req.ClaimIDs}
	var (
		artifact *report.Artifact
		err      error
	)
	switch req.Type {
	case "excel":
		artifact, err = h.assembler.ExcelReport(ctx, scope)
	case "items_csv":
		artifact, err = h.assembler.ItemsCSVReport(ctx, scope)
	case "claims_csv":
		artifact, err = h.assembler.ClaimsCSVReport(ctx, scope)
	case "receipts_zip":
		artifact, err = h.assembler.ReceiptsArchive(ctx, scope)
	case "comprehensive_zip":
		artifact, err = h.assembler.ComprehensiveArchive(ctx, scope)
	default:
		h.badRequest(c, fmt.Sprintf("unknown report type: %s", req.Type))
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, report.ErrInvalidMonthSelector):
			h.badRequest(c, err.Error())
		case errors.Is(err, report.ErrNothingToReport):
			c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
		default:
			h.serverError(c, "failed to generate report", err)
		}
		return
	}

	h.logger.Info("Report generated",
		zap.String("type", req.Type),
		zap.String("month", req.MonthYear),
		zap.Int("claim_ids", len(req.ClaimIDs)),
		zap.String("filename", artifact.Filename),
		zap.Int("bytes", len(artifact.Content)))

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Content)
}

// bindClaimForm reads the multipart claim fields shared by create and
// update. Items come from an optional items JSON field.
func (h *Handlers) bindClaimForm(c *gin.Context) (*models.Claim, []*models.ClaimItem, bool) {
	var form struct {
		AliasName       string   `form:"alias_name"`
		FromDate        string   `form:"from_date" binding:"required"`
		ToDate          string   `form:"to_date" binding:"required"`
		TotalAmount     float64  `form:"total_amount" binding:"required,gt=0"`
		TotalCurrency   string   `form:"total_currency" binding:"required"`
		PaidAmount      *float64 `form:"paid_amount"`
		PaidCurrency    string   `form:"paid_currency"`
		ExpenseGroup    string   `form:"expense_group" binding:"required"`
		BusinessPurpose string   `form:"business_purpose"`
		Items           string   `form:"items"`
	}
	if err := c.ShouldBind(&form); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid claim payload: %v", err))
		return nil, nil, false
	}

	fromDate, err := time.Parse(dateLayout, form.FromDate)
	if err != nil {
		h.badRequest(c, fmt.Sprintf("invalid from_date: %s", form.FromDate))
		return nil, nil, false
	}
	toDate, err := time.Parse(dateLayout, form.ToDate)
	if err != nil {
		h.badRequest(c, fmt.Sprintf("invalid to_date: %s", form.ToDate))
		return nil, nil, false
	}
	if toDate.Before(fromDate) {
		h.badRequest(c, "to_date must not be before from_date")
		return nil, nil, false
	}
	if !models.ValidCurrency(form.TotalCurrency) {
		h.badRequest(c, fmt.Sprintf("unknown currency: %s", form.TotalCurrency))
		return nil, nil, false
	}
	if form.PaidCurrency != "" && !models.ValidCurrency(form.PaidCurrency) {
		h.badRequest(c, fmt.Sprintf("unknown currency: %s", form.PaidCurrency))
		return nil, nil, false
	}
	if !models.ValidExpenseGroup(form.ExpenseGroup) {
		h.badRequest(c, fmt.Sprintf("unknown expense group: %s", form.ExpenseGroup))
		return nil, nil, false
	}
	if err := utils.ValidateAmount(form.TotalAmount); err != nil {
		h.badRequest(c, err.Error())
		return nil, nil, false
	}

	claim := &models.Claim{
		AliasName:       utils.SanitizeString(form.AliasName),
		FromDate:        fromDate,
		ToDate:          toDate,
		TotalAmount:     form.TotalAmount,
		TotalCurrency:   form.TotalCurrency,
		PaidAmount:      form.PaidAmount,
		PaidCurrency:    form.PaidCurrency,
		ExpenseGroup:    form.ExpenseGroup,
		BusinessPurpose: utils.SanitizeString(form.BusinessPurpose),
	}

	var items []*models.ClaimItem
	if form.Items != "" {
		var reqs []itemRequest
		if err := json.Unmarshal([]byte(form.Items), &reqs); err != nil {
			h.badRequest(c, fmt.Sprintf("invalid items payload: %v", err))
			return nil, nil, false
		}
		for _, req := range reqs {
			if req.Description == "" || req.Amount <= 0 || !models.ValidCurrency(req.Currency) {
				h.badRequest(c, "each item needs a description, a positive amount and a known currency")
				return nil, nil, false
			}
			items = append(items, &models.ClaimItem{
				Description:   utils.SanitizeString(req.Description),
				Amount:        req.Amount,
				Currency:      req.Currency,
				PaidAmount:    req.PaidAmount,
				PaidCurrency:  req.PaidCurrency,
				Justification: utils.SanitizeString(req.Justification),
			})
		}
	}

	return claim, items, true
}

// saveReceiptUpload stores the optional receipt file from a multipart
// request. The second return is false when the request was already answered
// with an error.
func (h *Handlers) saveReceiptUpload(c *gin.Context, claimID string) (string, bool) {
	file, err := c.FormFile("receipt")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", true
		}
		h.badRequest(c, fmt.Sprintf("invalid receipt upload: %v", err))
		return "", false
	}
	if file.Size > maxReceiptSize {
		h.badRequest(c, "receipt file exceeds the 16 MiB limit")
		return "", false
	}

	src, err := file.Open()
	if err != nil {
		h.serverError(c, "failed to read receipt upload", err)
		return "", false
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		h.serverError(c, "failed to read receipt upload", err)
		return "", false
	}

	path, err := h.receipts.Save(claimID, file.Filename, content)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedFileType) {
			h.badRequest(c, err.Error())
		} else {
			h.serverError(c, "failed to store receipt", err)
		}
		return "", false
	}
	return path, true
}

func (h *Handlers) loadClaim(c *gin.Context) (*models.Claim, bool) {
	claimID := c.Param("id")
	claim, err := h.claims.GetByID(c.Request.Context(), claimID)
	if err != nil {
		h.serverError(c, "failed to load claim", err)
		return nil, false
	}
	if claim == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "claim not found"})
		return nil, false
	}
	return claim, true
}

func (h *Handlers) loadItem(c *gin.Context) (*models.ClaimItem, bool) {
	claim, ok := h.loadClaim(c)
	if !ok {
		return nil, false
	}

	itemID, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		h.badRequest(c, fmt.Sprintf("invalid item id: %s", c.Param("item_id")))
		return nil, false
	}

	item, err := h.items.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.serverError(c, "failed to load claim item", err)
		return nil, false
	}
	if item == nil || item.ClaimID != claim.ClaimID {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "claim item not found"})
		return nil, false
	}
	return item, true
}

func (h *Handlers) claimResponse(claim *models.Claim, items []*models.ClaimItem) *ClaimResponse {
	if items == nil {
		items = []*models.ClaimItem{}
	}
	return &ClaimResponse{
		Claim:        claim,
		Items:        items,
		ItemsTotal:   models.ItemsTotal(items),
		AmountsMatch: claim.AmountsMatch(items),
	}
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func (h *Handlers) serverError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: msg})
}
