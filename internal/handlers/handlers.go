package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/Brownie44l1/fracture-api/internal/bitmap"
	"github.com/Brownie44l1/fracture-api/internal/config"
	"github.com/Brownie44l1/fracture-api/internal/model"
	"github.com/Brownie44l1/fracture-api/internal/policy"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"github.com/pkg/errors"
)

const (
	defaultLanguage = "en"
	fileField       = "file"

	// AnalysisIDHeader carries the id under which an analysis was logged.
	AnalysisIDHeader = "X-Analysis-Id"
)

type analyzeForm struct {
	Language string `schema:"language"`
}

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// Handler serves the analysis API. Everything it holds is built once at
// startup and only read afterwards.
type Handler struct {
	classifier     model.Classifier
	normalizer     *bitmap.Normalizer
	profile        config.Profile
	maxUploadBytes int64
}

func NewHandler(classifier model.Classifier, normalizer *bitmap.Normalizer, profile config.Profile, maxUploadBytes int64) *Handler {
	return &Handler{
		classifier:     classifier,
		normalizer:     normalizer,
		profile:        profile,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) AddRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/analyze", h.Analyze)
}

type RootResponse struct {
	Status         string `json:"status"`
	ModelLoaded    bool   `json:"model_loaded"`
	DICOMAvailable bool   `json:"dicom_available"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

type ErrorResponse struct {
	Error        string   `json:"error"`
	FractureType *string  `json:"fractureType,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Status:         "ready",
		ModelLoaded:    h.classifier.Loaded(),
		DICOMAvailable: h.normalizer.DICOMEnabled(),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state := "failed"
	if h.classifier.Loaded() {
		state = "loaded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Model: state})
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	w.Header().Set(AnalysisIDHeader, id.String())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		slog.Warn("rejecting analysis request", "analysis_id", id, "error", err)
		h.writeError(w, http.StatusUnprocessableEntity, errors.Wrap(err, "failed to parse form"))
		return
	}

	form := analyzeForm{Language: defaultLanguage}
	if err := formDecoder.Decode(&form, r.MultipartForm.Value); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, errors.Wrap(err, "invalid form fields"))
		return
	}
	if form.Language == "" {
		form.Language = defaultLanguage
	}

	file, header, err := r.FormFile(fileField)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, errors.New("no file provided, use 'file' as the form field name"))
		return
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, errors.Wrap(err, "failed to read upload"))
		return
	}

	slog.Info("received file", "analysis_id", id, "filename", header.Filename, "size", len(contents), "language", form.Language)

	verdict, err := h.analyze(contents, header.Filename, form.Language)
	if err != nil {
		slog.Error("error processing image", "analysis_id", id, "filename", header.Filename, "error", err)
		h.writeError(w, http.StatusOK, err)
		return
	}

	slog.Info("analysis complete", "analysis_id", id, "fracture_type", verdict.FractureType,
		"confidence", verdict.Confidence, "status", verdict.Status, "raw_class", verdict.Metadata.RawClass)

	writeJSON(w, http.StatusOK, verdict)
}

// analyze runs normalize, classify and evaluate for one upload.
func (h *Handler) analyze(contents []byte, filename, language string) (*policy.Verdict, error) {
	decoded, err := h.normalizer.Normalize(contents, filename)
	if err != nil {
		return nil, err
	}

	result, err := h.classifier.Classify(decoded.Bitmap)
	if err != nil {
		return nil, err
	}

	in := policy.Input{
		Predictions: result.Predictions,
		Provider:    h.classifier.Provider(),
		Inference:   h.classifier.Inference(),
		Language:    language,
	}
	if decoded.DICOM != nil {
		in.DICOM = decoded.DICOM.Fields()
	}

	verdict := policy.Evaluate(in)
	return &verdict, nil
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if h.profile == config.ProfileSpace {
		fractureType, confidence := "error", 0.0
		resp.FractureType = &fractureType
		resp.Confidence = &confidence
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}
