package records

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/healthcare-records/internal/handler"
	"github.com/jwalitptl/healthcare-records/internal/model"
	apperrors "github.com/jwalitptl/healthcare-records/pkg/errors"
	"github.com/jwalitptl/healthcare-records/pkg/httputil"
)

type Handler struct {
	session handler.Session
	txs     handler.TransactionLookup
}

func NewHandler(session handler.Session, txs handler.TransactionLookup) *Handler {
	return &Handler{session: session, txs: txs}
}

// RegisterRoutes mounts the JSON API. write guards the state-changing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, write ...gin.HandlerFunc) {
	r.GET("/session", h.GetSession)
	r.GET("/patients/:patientID/records", h.ListRecords)
	r.GET("/transactions/:hash", h.GetTransaction)

	writes := r.Group("", write...)
	{
		writes.POST("/patients/:patientID/records", h.AddRecord)
		writes.POST("/providers", h.AuthorizeProvider)
	}
}

func (h *Handler) GetSession(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.session.State())
}

func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.session.FetchRecords(c.Request.Context(), c.Param("patientID"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, records)
}

type addRecordRequest struct {
	Diagnosis   string `json:"diagnosis"`
	Treatment   string `json:"treatment"`
	PatientName string `json:"patientName"`
}

func (h *Handler) AddRecord(c *gin.Context) {
	var req addRecordRequest
	if err := bindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.session.AddRecord(c.Request.Context(), model.AddRecordForm{
		PatientID:   c.Param("patientID"),
		Diagnosis:   req.Diagnosis,
		Treatment:   req.Treatment,
		PatientName: req.PatientName,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, result)
}

func (h *Handler) AuthorizeProvider(c *gin.Context) {
	var form model.AuthorizeProviderForm
	if err := bindJSON(c, &form); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.session.AuthorizeProvider(c.Request.Context(), form.ProviderAddress)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	tx, err := h.txs.Get(c.Param("hash"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, tx)
}

// bindJSON treats an empty body as an empty request.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Validation("invalid request body", err)
	}
	return nil
}
