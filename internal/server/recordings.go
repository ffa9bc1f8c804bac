package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sales-call-insights-go/internal/blob"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/pipeline"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/store"
	"sales-call-insights-go/internal/types"
)

var allowedMIME = map[string]bool{
	"audio/mp3":   true,
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/webm":  true,
	"audio/ogg":   true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/aac":   true,
}

func acceptedAudio(h *multipart.FileHeader) bool {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(h.Header.Get("Content-Type"), ";", 2)[0]))
	if allowedMIME[mt] {
		return true
	}
	return (mt == "" || mt == "application/octet-stream") && blob.Supported(h.Filename)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "upload")

	r.Body = http.MaxBytesReader(w, r.Body, s.d.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, r, http.StatusUnprocessableEntity,
				fmt.Sprintf("File is too large. Maximum size is %dMB.", s.d.MaxUploadBytes>>20))
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, hdr, err := r.FormFile("audio")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "No audio file uploaded")
		return
	}
	defer file.Close()

	if !acceptedAudio(hdr) {
		writeError(w, r, http.StatusUnprocessableEntity, "Invalid file type. Only audio files are allowed.")
		return
	}

	tmp, err := s.saveUpload(file, hdr.Filename)
	if err != nil {
		log.WithError(err).Error("failed to store upload")
		writeError(w, r, http.StatusInternalServerError, "An error occurred while processing your request.")
		return
	}

	rec, err := s.d.Lifecycle.Submit(r.Context(), pipeline.NewRecording{
		CustomerName:  r.FormValue("name"),
		CustomerPhone: r.FormValue("phone"),
		RepEmail:      r.FormValue("email"),
		RepName:       r.FormValue("userName"),
		Project:       r.FormValue("project"),
		LocalPath:     tmp,
		FileName:      hdr.Filename,
	})
	if err != nil {
		if rmErr := scratch.Remove(tmp); rmErr != nil {
			log.WithError(rmErr).Warn("failed to remove upload")
		}
		if errors.Is(err, pipeline.ErrInvalid) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		log.WithError(err).Error("failed to submit recording")
		writeError(w, r, http.StatusInternalServerError, "An error occurred while processing your request.")
		return
	}

	s.d.Lifecycle.Start(rec, tmp)

	log.WithField("recording_id", rec.ID).Info("recording accepted")
	writeJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"message":     "Recording uploaded successfully. Analysis in progress...",
		"recordingId": rec.ID,
		"status":      types.StatusProcessing,
	})
}

func (s *Server) saveUpload(src io.Reader, name string) (string, error) {
	if err := s.d.Uploads.Ensure(); err != nil {
		return "", err
	}
	path := s.d.Uploads.Path("upload", strings.ToLower(filepath.Ext(name)))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RecordingFilter{
		Project: strings.TrimSpace(q.Get("project")),
		Status:  types.Status(strings.TrimSpace(q.Get("status"))),
	}
	if l, err := strconv.ParseUint(q.Get("limit"), 10, 64); err == nil {
		f.Limit = l
	}

	recs, err := s.d.Records.ListRecordings(r.Context(), f)
	if err != nil {
		logger.New().WithRequest(r).WithError(err).Error("failed to list recordings")
		writeError(w, r, http.StatusInternalServerError, "Server error")
		return
	}
	if recs == nil {
		recs = []types.Recording{}
	}
	writeJSON(w, r, http.StatusOK, recs)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rep, err := s.d.Lifecycle.Status(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Recording not found")
		return
	}
	if err != nil {
		logger.New().WithRequest(r).WithError(err).Error("failed to check status")
		writeError(w, r, http.StatusInternalServerError, "Failed to check status")
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "retry")

	rec, err := s.d.Lifecycle.Retry(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Recording not found")
	case errors.Is(err, pipeline.ErrAnalysisFailed):
		log.WithError(err).Warn("retry ended in failure")
		writeJSON(w, r, http.StatusInternalServerError, map[string]interface{}{
			"error":     "Failed to retry analysis",
			"details":   err.Error(),
			"recording": rec,
		})
	case err != nil:
		log.WithError(err).Error("retry failed")
		writeJSON(w, r, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to retry analysis",
			"details": err.Error(),
		})
	default:
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"message":   "Analysis retried successfully",
			"recording": rec,
		})
	}
}
