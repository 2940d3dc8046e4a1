// Package ui serves the server-rendered page with the three action forms.
package ui

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/healthcare-records/internal/handler"
	"github.com/jwalitptl/healthcare-records/internal/middleware"
	"github.com/jwalitptl/healthcare-records/internal/model"
	apperrors "github.com/jwalitptl/healthcare-records/pkg/errors"
)

//go:embed templates/*.html
var templates embed.FS

const pageTemplate = "index.html"

// Templates parses the embedded page. Install it with gin's SetHTMLTemplate.
func Templates() (*template.Template, error) {
	return template.ParseFS(templates, "templates/*.html")
}

// inputs is every field on the page. Each form posts the other forms' values
// as hidden fields, so no action clears what the user typed elsewhere.
type inputs struct {
	PatientID       string `form:"patientID"`
	Diagnosis       string `form:"diagnosis"`
	Treatment       string `form:"treatment"`
	ProviderAddress string `form:"providerAddress"`
}

type page struct {
	State   model.SessionState
	Records []model.Record
	Inputs  inputs
	Prompt  string
}

type Handler struct {
	session handler.Session
	logger  *zerolog.Logger
}

func NewHandler(session handler.Session, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{session: session, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, write ...gin.HandlerFunc) {
	r.GET("/", h.Index)

	ui := r.Group("/ui")
	{
		ui.POST("/records/fetch", h.FetchRecords)
		ui.POST("/records", chain(write, h.AddRecord)...)
		ui.POST("/providers", chain(write, h.AuthorizeProvider)...)
	}
}

func chain(guards []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	return append(handlers, last)
}

func (h *Handler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, page{})
}

func (h *Handler) FetchRecords(c *gin.Context) {
	p := page{Inputs: h.bind(c)}
	_, err := h.session.FetchRecords(c.Request.Context(), p.Inputs.PatientID)
	h.render(c, statusFor(&p, err), p)
}

func (h *Handler) AddRecord(c *gin.Context) {
	p := page{Inputs: h.bind(c)}
	result, err := h.session.AddRecord(c.Request.Context(), model.AddRecordForm{
		PatientID: p.Inputs.PatientID,
		Diagnosis: p.Inputs.Diagnosis,
		Treatment: p.Inputs.Treatment,
	})
	if err == nil {
		p.Prompt = result.Prompt
	}
	h.render(c, statusFor(&p, err), p)
}

func (h *Handler) AuthorizeProvider(c *gin.Context) {
	p := page{Inputs: h.bind(c)}
	result, err := h.session.AuthorizeProvider(c.Request.Context(), p.Inputs.ProviderAddress)
	if err == nil {
		p.Prompt = result.Prompt
	}
	h.render(c, statusFor(&p, err), p)
}

// bind reads the posted fields. A malformed body is logged and the action
// runs with whatever was read.
func (h *Handler) bind(c *gin.Context) inputs {
	var in inputs
	if err := c.ShouldBind(&in); err != nil {
		h.logger.Debug().
			Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("path", c.Request.URL.Path).
			Msg("Form bind failed")
	}
	return in
}

// statusFor surfaces prompt-worthy errors on the page. Every other failure
// renders as if nothing happened.
func statusFor(p *page, err error) int {
	if err == nil {
		return http.StatusOK
	}
	if appErr, ok := apperrors.As(err); ok && appErr.Prompt() {
		p.Prompt = appErr.Message
		return appErr.StatusCode()
	}
	return http.StatusOK
}

func (h *Handler) render(c *gin.Context, status int, p page) {
	p.State = h.session.State()
	p.Records = h.session.Records()
	c.HTML(status, pageTemplate, p)
}
