package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/pipe.works/internal/customvars"
	"github.com/Simplici0/pipe.works/internal/observability"
	"github.com/Simplici0/pipe.works/internal/pricing"
	"github.com/Simplici0/pipe.works/internal/quote"
	"github.com/Simplici0/pipe.works/internal/settings"
)

type server struct {
	auth         *authService
	coefficients *settings.CoefficientStore
	formulas     *settings.FormulaStore
	variables    *customvars.Registry
	engine       *pricing.Engine
	history      *quote.History
	logger       *zap.Logger
	metrics      http.Handler
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.middleware)

		r.Get("/models", s.handleModels)

		r.Get("/coefficients", s.handleCoefficientsList)
		r.Put("/coefficients/{model}", s.handleCoefficientsUpdate)
		r.Post("/coefficients/{model}/reset", s.handleCoefficientsReset)

		r.Get("/formulas", s.handleFormulasList)
		r.Post("/formulas/preview", s.handleFormulaPreview)
		r.Put("/formulas/{model}", s.handleFormulaUpdate)
		r.Post("/formulas/{model}/reset", s.handleFormulaReset)

		r.Get("/variables", s.handleVariablesList)
		r.Post("/variables", s.handleVariablesCreate)
		r.Patch("/variables/{id}", s.handleVariablesUpdate)
		r.Delete("/variables/{id}", s.handleVariablesDelete)

		r.Post("/quotes/calc", s.handleQuoteCalc)

		r.Get("/history", s.handleHistoryList)
		r.Post("/history", s.handleHistoryCreate)
		r.Delete("/history/{id}", s.handleHistoryDelete)

		r.Get("/settings/export", s.handleSettingsExport)
		r.Post("/settings/import", s.handleSettingsImport)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.auth.validatePassword(req.Password) {
		writeError(w, http.StatusUnauthorized, "Неверный пароль")
		return
	}

	s.auth.setSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
