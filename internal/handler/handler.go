package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/harliandi/go-img2jpeg/internal/config"
	"github.com/harliandi/go-img2jpeg/internal/converter"
	"github.com/harliandi/go-img2jpeg/internal/middleware"
	"github.com/harliandi/go-img2jpeg/pkg/jpeg"
	"github.com/harliandi/go-img2jpeg/pkg/metrics"
)

const (
	maxMemory  = 32 << 20 // 32MB max in-memory for multipart parsing
	maxRetries = 3        // worker pool submit attempts for /convert
)

// inputFormats are the containers /convert accepts.
var inputFormats = []string{"heif", "webp", "png", "gif", "jpeg", "bmp", "tiff"}

// Handler handles HTTP requests for raw frame encoding and image conversion
type Handler struct {
	pool           *converter.WorkerPool
	opts           *jpeg.Options
	maxUploadBytes int64
	targetSizeKB   int
	defaultQuality int
}

// New creates a new Handler. A nil pool gets a private worker pool sized
// from cfg.
func New(cfg *config.Config, pool *converter.WorkerPool) *Handler {
	opts := cfg.EncodeOptions()
	if pool == nil {
		pool = converter.NewWorkerPool(cfg.WorkerCount, converter.New(cfg.TargetSizeKB, opts))
	}
	return &Handler{
		pool:           pool,
		opts:           opts,
		maxUploadBytes: cfg.MaxUploadBytes(),
		targetSizeKB:   cfg.TargetSizeKB,
		defaultQuality: jpeg.ClampQuality(cfg.DefaultQuality),
	}
}

// Encode handles the /encode endpoint. The request body is a raw frame
// described by the width, height and format query parameters; the JPEG is
// streamed back as it is produced.
func (h *Handler) Encode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	width, errW := strconv.Atoi(query.Get("width"))
	height, errH := strconv.Atoi(query.Get("height"))
	if errW != nil || errH != nil {
		http.Error(w, "width and height are required integers", http.StatusBadRequest)
		return
	}
	format, err := jpeg.ParsePixelFormat(query.Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}
	q := h.defaultQuality
	if qualityStr := query.Get("quality"); qualityStr != "" {
		if v, err := strconv.Atoi(qualityStr); err == nil {
			q = v
		}
	}

	// Validate before reading the body so bad requests fail fast
	img := jpeg.Image{Width: width, Height: height, Format: format, Quality: q}
	if need := format.FrameSize(width, height); width > 0 && height > 0 && int64(need) > h.maxUploadBytes {
		http.Error(w, "Frame exceeds upload limit", http.StatusRequestEntityTooLarge)
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	img.Pix, err = io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Failed to read body", http.StatusBadRequest)
		}
		return
	}

	if err := img.Validate(h.opts); err != nil {
		metrics.RecordEncode("callback", string(jpeg.KindOf(err)), format.String(), 0, 0, 0)
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	st := &streamState{w: w}
	start := time.Now()
	err = jpeg.EncodeToCallback(img, writeChunk, st, h.opts)
	metrics.RecordEncode("callback", string(jpeg.KindOf(err)), format.String(),
		width*height, st.written, time.Since(start).Seconds())
	if err != nil {
		if st.written == 0 {
			w.Header().Del("Content-Type")
			h.writeError(w, r, err)
			return
		}
		// Headers are gone; all we can do is cut the stream short.
		log.Printf("[%s] Encode aborted after %d bytes: %v", middleware.GetRequestID(r.Context()), st.written, err)
	}
}

// streamState is the callback context of a streamed encode.
type streamState struct {
	w       http.ResponseWriter
	written int
}

func writeChunk(arg any, index int, data []byte) int {
	st := arg.(*streamState)
	n, err := st.w.Write(data)
	st.written += n
	if err != nil {
		return n
	}
	return len(data)
}

// Convert handles the /convert endpoint
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form with size limit
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			http.Error(w, "Content-Type must be multipart/form-data", http.StatusBadRequest)
		case errors.As(err, &maxErr):
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		default:
			http.Error(w, "Malformed multipart body", http.StatusBadRequest)
		}
		return
	}

	// Get file from form
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	// Validate the header of the actual content, not the extension
	data, err := converter.ReadImage(file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	job := jobFromRequest(r, data, h.targetSizeKB)
	jpegData, err := h.pool.SubmitWithRetry(r.Context(), job, maxRetries)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Send response
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(jpegData)))
	w.WriteHeader(http.StatusOK)
	w.Write(jpegData)
}

// jobFromRequest builds a conversion job from the quality, scale and
// max_size query parameters. Invalid values are ignored.
func jobFromRequest(r *http.Request, data []byte, targetSizeKB int) converter.Job {
	query := r.URL.Query()
	job := converter.Job{Data: data, Scale: 1, TargetSizeKB: targetSizeKB}

	// Check for fixed quality parameter
	if qualityStr := query.Get("quality"); qualityStr != "" {
		if q, err := strconv.Atoi(qualityStr); err == nil && q >= 1 && q <= 100 {
			job.Quality = q
		}
	}

	// Check for downscale parameter
	if scaleStr := query.Get("scale"); scaleStr != "" {
		if s, err := strconv.ParseFloat(scaleStr, 64); err == nil && s > 0 && s < 1 {
			job.Scale = s
		}
	}

	// Check for custom max_size parameter
	if maxSizeStr := query.Get("max_size"); maxSizeStr != "" {
		if sizeKB, err := strconv.Atoi(maxSizeStr); err == nil && sizeKB > 0 {
			job.TargetSizeKB = sizeKB
		}
	}
	return job
}

// Formats handles the /formats endpoint
func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	type rawFormat struct {
		FourCC string `json:"fourcc"`
		Name   string `json:"name"`
	}
	resp := struct {
		Raw    []rawFormat `json:"raw"`
		Inputs []string    `json:"inputs"`
	}{Inputs: inputFormats}
	for _, f := range jpeg.SupportedFormats() {
		resp.Raw = append(resp.Raw, rawFormat{FourCC: f.String(), Name: f.Name()})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Health handles the /health endpoint for readiness and liveness checks
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// writeError logs err and maps it to an HTTP status
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log.Printf("[%s] %s %s failed (%d): %v", middleware.GetRequestID(r.Context()), r.Method, r.URL.Path, status, err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	http.Error(w, http.StatusText(status)+": "+err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, jpeg.ErrInvalidDimensions),
		errors.Is(err, converter.ErrInvalidImageDimensions):
		return http.StatusBadRequest
	case errors.Is(err, jpeg.ErrUnsupportedFormat),
		errors.Is(err, converter.ErrInvalidImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, converter.ErrFileTooLarge),
		errors.Is(err, converter.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, jpeg.ErrAllocationFailure),
		errors.Is(err, converter.ErrPoolBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
