package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"facemirror/internal/protocol"
)

type startRecognitionRequest struct {
	IntervalMs int `json:"intervalMs"`
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	rec, imagePath, ok := s.bridge.Current()
	if !ok {
		http.Error(w, `{"error":"no status received yet"}`, http.StatusNotFound)
		return
	}
	if !s.debugPanel {
		rec = rec.StripDebug()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.RecognitionStatusPayload{
		Status:    rec,
		ImagePath: imagePath,
	})
}

func (s *Server) handleGetProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.Scan()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.ProfilesListPayload{Profiles: profiles})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	events := s.history.ReadAll()
	if events == nil {
		events = []StatusEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

func (s *Server) handleStartRecognition(w http.ResponseWriter, r *http.Request) {
	var req startRecognitionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
	}
	if req.IntervalMs < 0 {
		http.Error(w, `{"error":"intervalMs must not be negative"}`, http.StatusBadRequest)
		return
	}

	s.bridge.Start(time.Duration(req.IntervalMs) * time.Millisecond)

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"started"}`))
}

func (s *Server) handleStopRecognition(w http.ResponseWriter, r *http.Request) {
	s.bridge.Stop()

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"stopped"}`))
}
