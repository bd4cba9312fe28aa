package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/memchat/internal/identity"
	"github.com/ashureev/memchat/internal/judge"
)

type classifyRequest struct {
	Email string `json:"email"`
}

type sampleView struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EmailSamples lists the built-in example emails.
func (h *Handler) EmailSamples(w http.ResponseWriter, _ *http.Request) {
	samples := make([]sampleView, 0, len(judge.Samples))
	for _, s := range judge.Samples {
		samples = append(samples, sampleView{Name: s.Name, Email: s.Email})
	}
	JSON(w, http.StatusOK, map[string][]sampleView{"samples": samples})
}

// ClassifyEmail judges the posted email as important or junk.
func (h *Handler) ClassifyEmail(w http.ResponseWriter, r *http.Request) {
	if h.classifier == nil {
		Error(w, http.StatusServiceUnavailable, "email judge not configured")
		return
	}
	if !h.rateLimiter.Allow(identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req classifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	verdict, err := h.classifier.Classify(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, judge.ErrEmptyEmail) {
			Error(w, http.StatusBadRequest, "email is required")
			return
		}
		h.logger.Error("Email classification failed", "error", err)
		Error(w, http.StatusBadGateway, "classification failed")
		return
	}

	JSON(w, http.StatusOK, verdict)
}
