package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/customvars"
	"github.com/Simplici0/pipe.works/internal/expr"
	"github.com/Simplici0/pipe.works/internal/observability"
	"github.com/Simplici0/pipe.works/internal/pricing"
	"github.com/Simplici0/pipe.works/internal/quote"
	"github.com/Simplici0/pipe.works/internal/settings"
)

// fail maps domain errors to HTTP statuses. Formula errors keep their message so the
// editor can show it as is.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var exprErr *expr.Error
	switch {
	case errors.Is(err, settings.ErrUnknownModel),
		errors.Is(err, pricing.ErrUnknownModel),
		errors.Is(err, customvars.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, customvars.ErrDuplicateIdentifier):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, settings.ErrUnknownCoefficient),
		errors.Is(err, settings.ErrInvalidValue),
		errors.Is(err, settings.ErrInvalidFormula),
		errors.Is(err, settings.ErrInvalidBackup),
		errors.Is(err, customvars.ErrInvalidIdentifier),
		errors.Is(err, customvars.ErrInvalidValue),
		errors.Is(err, quote.ErrInvalidSelection):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &exprErr):
		writeError(w, http.StatusUnprocessableEntity, exprErr.Error())
	default:
		observability.LoggerWithTrace(r.Context(), s.logger).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", observability.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type modelView struct {
	Model                catalog.Model        `json:"model"`
	Family               catalog.Family       `json:"family"`
	Title                string               `json:"title"`
	Formula              string               `json:"formula"`
	DefaultFormula       string               `json:"defaultFormula"`
	FormulaModified      bool                 `json:"formulaModified"`
	FormulaError         string               `json:"formulaError,omitempty"`
	Variables            []string             `json:"variables"`
	Coefficients         catalog.Coefficients `json:"coefficients"`
	DefaultCoefficients  catalog.Coefficients `json:"defaultCoefficients"`
	CoefficientsModified bool                 `json:"coefficientsModified"`
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	formulas := s.formulas.Load(ctx)
	coefficients := s.coefficients.Load(ctx)

	views := make([]modelView, 0, len(catalog.Models()))
	for _, m := range catalog.Models() {
		v := modelView{
			Model:                m,
			Family:               m.Family(),
			Title:                m.Title(),
			Formula:              formulas[m],
			DefaultFormula:       s.formulas.Defaults(m),
			FormulaModified:      formulas.Modified(m),
			Variables:            []string{},
			Coefficients:         coefficients[m],
			DefaultCoefficients:  s.coefficients.Defaults(m),
			CoefficientsModified: coefficients.Modified(m),
		}
		if program, err := expr.Compile(formulas[m]); err != nil {
			v.FormulaError = err.Error()
		} else {
			v.Variables = program.Variables()
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *server) handleCoefficientsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coefficients.Load(r.Context()))
}

func (s *server) handleCoefficientsUpdate(w http.ResponseWriter, r *http.Request) {
	m := catalog.Model(chi.URLParam(r, "model"))
	var values map[string]float64
	if err := decodeJSON(w, r, &values); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.coefficients.Update(r.Context(), m, values); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coefficients.Coefficients(r.Context(), m))
}

func (s *server) handleCoefficientsReset(w http.ResponseWriter, r *http.Request) {
	m := catalog.Model(chi.URLParam(r, "model"))
	if err := s.coefficients.ResetModel(r.Context(), m); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coefficients.Coefficients(r.Context(), m))
}

func (s *server) handleFormulasList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.formulas.Load(r.Context()))
}

type formulaRequest struct {
	Expression string `json:"expression"`
}

type formulaResponse struct {
	Model      catalog.Model `json:"model"`
	Expression string        `json:"expression"`
	Error      string        `json:"error,omitempty"`
}

func (s *server) formulaResponse(r *http.Request, m catalog.Model) formulaResponse {
	resp := formulaResponse{Model: m, Expression: s.formulas.Formula(r.Context(), m)}
	if _, err := expr.Compile(resp.Expression); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *server) handleFormulaUpdate(w http.ResponseWriter, r *http.Request) {
	m := catalog.Model(chi.URLParam(r, "model"))
	var req formulaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.formulas.Update(r.Context(), m, req.Expression); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.formulaResponse(r, m))
}

func (s *server) handleFormulaReset(w http.ResponseWriter, r *http.Request) {
	m := catalog.Model(chi.URLParam(r, "model"))
	if err := s.formulas.ResetModel(r.Context(), m); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.formulaResponse(r, m))
}

// previewRequest evaluates Expression when set and the stored formula otherwise.
type previewRequest struct {
	Model      catalog.Model          `json:"model"`
	Expression *string                `json:"expression,omitempty"`
	Dimensions pricing.Dimensions     `json:"dimensions"`
	Prices     pricing.MaterialPrices `json:"prices"`
}

type previewResponse struct {
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
}

func (s *server) handleFormulaPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		value float64
		err   error
	)
	if req.Expression != nil {
		value, err = s.engine.Preview(r.Context(), req.Model, *req.Expression, req.Dimensions, req.Prices)
	} else {
		value, err = s.engine.Price(r.Context(), req.Model, req.Dimensions, req.Prices)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Value: value, Formatted: quote.FormatPrice(value)})
}

func (s *server) handleVariablesList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.variables.List())
}

type variableRequest struct {
	Name    string  `json:"name"`
	VarName string  `json:"varName"`
	Value   float64 `json:"value"`
}

func (s *server) handleVariablesCreate(w http.ResponseWriter, r *http.Request) {
	var req variableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := s.variables.Add(r.Context(), req.Name, req.VarName, req.Value)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

type variableValueRequest struct {
	Value float64 `json:"value"`
}

func (s *server) handleVariablesUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req variableValueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.variables.Update(r.Context(), id, req.Value); err != nil {
		s.fail(w, r, err)
		return
	}
	for _, v := range s.variables.List() {
		if v.ID == id {
			writeJSON(w, http.StatusOK, v)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleVariablesDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.variables.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quoteResponse struct {
	quote.Quote
	SubtotalFormatted string `json:"subtotalFormatted"`
	TotalFormatted    string `json:"totalFormatted"`
}

func newQuoteResponse(q quote.Quote) quoteResponse {
	return quoteResponse{
		Quote:             q,
		SubtotalFormatted: quote.FormatPrice(q.Subtotal),
		TotalFormatted:    quote.FormatPrice(q.Total),
	}
}

// withDefaults fills in the metal price when the request leaves it out.
func withDefaults(sel quote.Selection) quote.Selection {
	if sel.Prices.Metal == 0 {
		sel.Prices.Metal = catalog.DefaultMetalPrice
	}
	return sel
}

func (s *server) handleQuoteCalc(w http.ResponseWriter, r *http.Request) {
	var sel quote.Selection
	if err := decodeJSON(w, r, &sel); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := quote.Assemble(r.Context(), s.engine, withDefaults(sel))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(q))
}

func (s *server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.history.List(r.Context()))
}

type historyRequest struct {
	CompanyName   string          `json:"companyName"`
	ContactPerson string          `json:"contactPerson"`
	Selection     quote.Selection `json:"selection"`
}

func (s *server) handleHistoryCreate(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := quote.Assemble(r.Context(), s.engine, withDefaults(req.Selection))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.history.Save(r.Context(), req.CompanyName, req.ContactPerson, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSettingsExport(w http.ResponseWriter, r *http.Request) {
	data, err := settings.Export(r.Context(), s.coefficients, s.formulas)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="pipe-works-settings.yaml"`)
	_, _ = w.Write(data)
}

func (s *server) handleSettingsImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := settings.Import(r.Context(), data, s.coefficients, s.formulas); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
