package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/pipeline"
	"github.com/docpulse/docpulse/internal/social"
	"github.com/docpulse/docpulse/internal/store"
)

// multipartMemoryLimit bounds how much of an upload is buffered in memory
// before spilling to temp files.
const multipartMemoryLimit = 8 << 20

func newRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/batches", createBatchHandler(e))
		r.Get("/batches/{id}", getBatchHandler(e))
		r.Post("/batches/{id}/documents", uploadDocumentHandler(e))
		r.Get("/batches/{id}/documents", listDocumentsHandler(e))
		r.Post("/batches/{id}/analyze", analyzeBatchHandler(e))
		r.Get("/batches/{id}/analysis", getAnalysisHandler(e))
		r.Delete("/batches/{id}/analysis", deleteAnalysisHandler(e))

		r.Get("/documents/{id}", getDocumentHandler(e))
		r.Get("/documents/{id}/summary", documentSummaryHandler(e))
		r.Delete("/documents/{id}/summary", deleteSummaryHandler(e))

		r.Post("/social/accounts", trackAccountHandler(e))
		r.Get("/social/accounts", listAccountsHandler(e))
		r.Get("/social/accounts/{handle}/posts", listAccountPostsHandler(e))
		r.Get("/social/accounts/{handle}/analysis", analyzeAccountHandler(e))
		r.Post("/social/fetch", triggerFetchHandler(e))
		r.Get("/social/status", fetchStatusHandler(e))
	})

	return r
}

func createBatchHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			OwnerID     string `json:"owner_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Name == "" {
			respondError(w, http.StatusBadRequest, "name is required")
			return
		}

		batch := &model.DocumentBatch{
			Name:        body.Name,
			Description: body.Description,
			OwnerID:     body.OwnerID,
		}
		if err := e.Store.CreateBatch(req.Context(), batch); err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, batch)
	}
}

func getBatchHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		batch, err := e.Store.GetBatch(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, batch)
	}
}

func uploadDocumentHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(multipartMemoryLimit); err != nil {
			respondError(w, http.StatusBadRequest, "expected multipart form upload")
			return
		}
		file, header, err := req.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			respondError(w, http.StatusBadRequest, "read upload")
			return
		}

		doc, err := e.Ingestor.Ingest(req.Context(), chi.URLParam(req, "id"), header.Filename, data)
		switch {
		case errors.Is(err, pipeline.ErrUnsupportedFileType):
			respondError(w, http.StatusUnsupportedMediaType, "unsupported file type; accepted: pdf, txt, csv, doc, docx")
			return
		case errors.Is(err, pipeline.ErrFileTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload size limit")
			return
		case err != nil:
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, doc)
	}
}

func listDocumentsHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		batchID := chi.URLParam(req, "id")
		if _, err := e.Store.GetBatch(req.Context(), batchID); err != nil {
			respondStoreError(w, err)
			return
		}
		docs, err := e.Store.ListDocuments(req.Context(), batchID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if docs == nil {
			docs = []model.Document{}
		}
		respondJSON(w, http.StatusOK, docs)
	}
}

func analyzeBatchHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		analysis, err := e.Analyzer.AnalyzeBatch(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, analysis)
	}
}

func getAnalysisHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		analysis, err := e.Store.GetAnalysis(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, analysis)
	}
}

func deleteAnalysisHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := e.Store.DeleteAnalysis(req.Context(), chi.URLParam(req, "id")); err != nil {
			respondStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getDocumentHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		doc, err := e.Store.GetDocument(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, doc)
	}
}

func documentSummaryHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		summary, err := e.Analyzer.DocumentSummary(req.Context(), chi.URLParam(req, "id"))
		switch {
		case errors.Is(err, pipeline.ErrExtractionPending):
			respondError(w, http.StatusConflict, "document extraction is still in progress; retry shortly")
			return
		case errors.Is(err, pipeline.ErrTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "document exceeds the multimodal analysis size limit")
			return
		case err != nil:
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, summary)
	}
}

func deleteSummaryHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := e.Store.DeleteSummary(req.Context(), chi.URLParam(req, "id")); err != nil {
			respondStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func trackAccountHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Handle string `json:"handle"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Handle == "" {
			respondError(w, http.StatusBadRequest, "handle is required")
			return
		}

		acct, err := e.Fetcher.Track(req.Context(), body.Handle)
		if err != nil {
			zap.L().Warn("track account failed", zap.String("handle", body.Handle), zap.Error(err))
			respondError(w, http.StatusBadGateway, "could not resolve handle on the platform")
			return
		}
		// Start collecting posts for the new account right away.
		e.Scheduler.Trigger()
		respondJSON(w, http.StatusCreated, acct)
	}
}

func listAccountsHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		accounts, err := e.Store.ListAccounts(req.Context())
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if accounts == nil {
			accounts = []model.SocialAccount{}
		}
		respondJSON(w, http.StatusOK, accounts)
	}
}

func listAccountPostsHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		posts, err := e.Store.ListPostsByHandle(req.Context(), chi.URLParam(req, "handle"), 0)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if posts == nil {
			posts = []model.SocialPost{}
		}
		respondJSON(w, http.StatusOK, posts)
	}
}

func analyzeAccountHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		analysis, err := e.Accounts.Analyze(req.Context(), chi.URLParam(req, "handle"))
		switch {
		case errors.Is(err, social.ErrUntrackedAccount):
			respondError(w, http.StatusNotFound, "account is not tracked and has no stored posts; register it via POST /api/social/accounts")
			return
		case err != nil:
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, analysis)
	}
}

func triggerFetchHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		e.Scheduler.Trigger()
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "fetch scheduled"})
	}
}

func fetchStatusHandler(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusOK, e.Fetcher.Status())
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}
