package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/reelgen/reelgen/src/internal/domain"
	"github.com/reelgen/reelgen/src/internal/ports"
	"github.com/reelgen/reelgen/src/internal/services"
)

const (
	maxUploadBytes   = 512 << 20
	maxVideoDuration = 60.0 // seconds
)

type apiServer struct {
	users     ports.UserRepository
	sessions  ports.SessionRepository
	store     ports.ObjectStore
	analyzer  *services.AnalyzerChain
	planner   *services.Planner
	generator *services.Generator
	tempDir   string
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// handleCreateUser is idempotent per email: signing up twice returns the
// same user ID.
func (s *apiServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	existing, err := s.users.GetByEmail(r.Context(), email)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"user_id": existing.ID,
			"message": "User already exists",
		})
		return
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	user := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now(),
		LastLogin: time.Now(),
	}
	if err := s.users.Save(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "User creation failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": user.ID,
		"message": "User created successfully",
	})
}

// handleUploadVideo stores the uploaded artifacts, runs the analysis
// fallback chain, and creates the session record.
func (s *apiServer) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	video, videoHeader, err := r.FormFile("video_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Video file is required")
		return
	}
	defer video.Close()
	if !strings.HasPrefix(videoHeader.Header.Get("Content-Type"), "video/") {
		writeError(w, http.StatusBadRequest, "Invalid video file type")
		return
	}

	// Duration policy check, before any collaborator call. The client
	// declares the duration it measured at selection time; nothing here
	// probes the media itself.
	if durStr := r.FormValue("duration_seconds"); durStr != "" {
		duration, err := strconv.ParseFloat(durStr, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid duration_seconds")
			return
		}
		if duration > maxVideoDuration {
			writeError(w, http.StatusBadRequest, "Video must be 60 seconds or shorter")
			return
		}
	}

	sessionID := uuid.NewString()

	// Stage everything in the temp dir first. The analyzer reads local
	// paths while object storage gets its own copies.
	req := domain.AnalysisRequest{}
	req.VideoPath, err = s.saveTemp(video, sessionID+"_sample.mp4")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save video: "+err.Error())
		return
	}
	defer s.cleanupTemp(&req)

	if image, header, ferr := r.FormFile("character_image"); ferr == nil {
		defer image.Close()
		if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
			writeError(w, http.StatusBadRequest, "Invalid image file type")
			return
		}
		req.CharacterImagePath, err = s.saveTemp(image, sessionID+"_character.jpg")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save image: "+err.Error())
			return
		}
	}
	if audio, header, ferr := r.FormFile("audio_file"); ferr == nil {
		defer audio.Close()
		if !strings.HasPrefix(header.Header.Get("Content-Type"), "audio/") {
			writeError(w, http.StatusBadRequest, "Invalid audio file type")
			return
		}
		req.AudioPath, err = s.saveTemp(audio, sessionID+"_audio.mp3")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save audio: "+err.Error())
			return
		}
	}

	var videoURL, imageURL, audioURL string
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		videoURL, err = s.putFile(gctx, domain.SampleVideoKey(sessionID), req.VideoPath, "video/mp4")
		return err
	})
	if req.CharacterImagePath != "" {
		g.Go(func() error {
			var err error
			imageURL, err = s.putFile(gctx, domain.CharacterImageKey(sessionID), req.CharacterImagePath, "image/jpeg")
			return err
		})
	}
	if req.AudioPath != "" {
		g.Go(func() error {
			var err error
			audioURL, err = s.putFile(gctx, domain.AudioKey(sessionID), req.AudioPath, "audio/mpeg")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusInternalServerError, "Upload failed: "+err.Error())
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		// Every strategy failed: no session record is written, and the
		// artifacts stored above are deleted rather than left to leak.
		s.deleteArtifacts(r.Context(), sessionID, imageURL != "", audioURL != "")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now()
	session := &domain.Session{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		UserID:            userID,
		SampleVideoURL:    videoURL,
		CharacterImageURL: imageURL,
		AudioURL:          audioURL,
		Analysis:          result.Analysis,
		Plan:              result.Plan,
		Status:            domain.StatusAnalyzed,
		CreatedAt:         now,
		ExpiresAt:         now.Add(domain.SessionTTL),
	}
	if err := s.sessions.Save(r.Context(), session); err != nil {
		s.deleteArtifacts(r.Context(), sessionID, imageURL != "", audioURL != "")
		writeError(w, http.StatusInternalServerError, "Failed to persist session: "+err.Error())
		return
	}

	log.Printf("[API] Session %s created for user %s", sessionID, userID)
	writeJSON(w, http.StatusOK, session)
}

func (s *apiServer) saveTemp(src multipart.File, filename string) (string, error) {
	if err := os.MkdirAll(s.tempDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(s.tempDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *apiServer) cleanupTemp(req *domain.AnalysisRequest) {
	for _, path := range []string{req.VideoPath, req.CharacterImagePath, req.AudioPath} {
		if path != "" {
			os.Remove(path)
		}
	}
}

func (s *apiServer) putFile(ctx context.Context, key, path, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.store.Put(ctx, key, f, contentType)
}

func (s *apiServer) deleteArtifacts(ctx context.Context, sessionID string, hasImage, hasAudio bool) {
	keys := []string{domain.SampleVideoKey(sessionID)}
	if hasImage {
		keys = append(keys, domain.CharacterImageKey(sessionID))
	}
	if hasAudio {
		keys = append(keys, domain.AudioKey(sessionID))
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			log.Printf("[API] Failed to clean up artifact %s: %v", key, err)
		}
	}
}

type planModificationRequest struct {
	SessionID           string `json:"session_id"`
	ModificationRequest string `json:"modification_request"`
}

func (s *apiServer) handleModifyPlan(w http.ResponseWriter, r *http.Request) {
	var req planModificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.ModificationRequest) == "" {
		writeError(w, http.StatusBadRequest, "session_id and modification_request are required")
		return
	}

	revised, err := s.planner.ModifyPlan(r.Context(), req.SessionID, req.ModificationRequest)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "success",
		"modified_plan": revised,
	})
}

type generationRequest struct {
	SessionID    string `json:"session_id"`
	ApprovedPlan string `json:"approved_plan"`
}

func (s *apiServer) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req generationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	err := s.generator.Start(r.Context(), req.SessionID, req.ApprovedPlan)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
		return
	case errors.Is(err, domain.ErrGenerationActive):
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "success",
		"message":    "Video generation started",
		"session_id": req.SessionID,
	})
}

type generationStatusResponse struct {
	SessionID              string  `json:"session_id"`
	Status                 string  `json:"status"`
	Progress               float64 `json:"progress"`
	EstimatedTimeRemaining *int    `json:"estimated_time_remaining"`
	VideoURL               string  `json:"video_url,omitempty"`
	Error                  string  `json:"error,omitempty"`
}

func (s *apiServer) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	session, err := s.sessions.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Generation not found")
		return
	}

	writeJSON(w, http.StatusOK, generationStatusResponse{
		SessionID:              session.SessionID,
		Status:                 string(session.Status),
		Progress:               session.Progress,
		EstimatedTimeRemaining: session.EstimatedTimeRemaining,
		VideoURL:               session.VideoURL,
		Error:                  session.Error,
	})
}

type videoSummary struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Analysis  string    `json:"analysis"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	VideoURL  string    `json:"video_url,omitempty"`
}

func (s *apiServer) handleUserVideos(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	sessions, err := s.sessions.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	videos := make([]videoSummary, 0, len(sessions))
	for _, session := range sessions {
		videos = append(videos, videoSummary{
			SessionID: session.SessionID,
			CreatedAt: session.CreatedAt,
			Analysis:  truncate(session.Analysis, 200),
			Status:    string(session.Status),
			Progress:  session.Progress,
			VideoURL:  session.VideoURL,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

func (s *apiServer) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	session, err := s.sessions.GetBySessionID(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *apiServer) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Pong"))
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func (s *apiServer) routes(router *mux.Router, auth *AuthMiddleware) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware)
	api.HandleFunc("/create-user", s.handleCreateUser).Methods(http.MethodPost)
	api.HandleFunc("/upload-video", s.handleUploadVideo).Methods(http.MethodPost)
	api.HandleFunc("/modify-plan", s.handleModifyPlan).Methods(http.MethodPost)
	api.HandleFunc("/generate-video", s.handleGenerateVideo).Methods(http.MethodPost)
	api.HandleFunc("/generation-status/{session_id}", s.handleGenerationStatus).Methods(http.MethodGet)
	api.HandleFunc("/user-videos/{user_id}", s.handleUserVideos).Methods(http.MethodGet)
	api.HandleFunc("/analysis/{session_id}", s.handleGetAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
}
