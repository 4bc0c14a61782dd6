package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/voicecmd"
	"github.com/MrWong99/voicenav/pkg/textmatch"
)

const (
	defaultMissLimit = 20
	maxMissLimit     = 500
)

type matchRequest struct {
	Text         string   `json:"text"`
	Candidates   []string `json:"candidates"`
	Threshold    *float64 `json:"threshold,omitempty"`
	AllowPartial *bool    `json:"allow_partial,omitempty"`
	PreferLonger *bool    `json:"prefer_longer,omitempty"`

	// Preprocess runs the default ASR corrections on Text first.
	Preprocess bool `json:"preprocess,omitempty"`
}

type matchResult struct {
	Command       string   `json:"command"`
	Score         float64  `json:"score"`
	Distance      int      `json:"distance"`
	MatchedWindow []string `json:"matched_window"`
}

type matchResponse struct {
	Matched bool         `json:"matched"`
	Result  *matchResult `json:"result,omitempty"`
}

// options converts the request overrides. Omitted fields keep their
// defaults.
func (req matchRequest) options() ([]textmatch.Option, error) {
	var opts []textmatch.Option
	if req.Threshold != nil {
		if t := *req.Threshold; t < 0 || t > 1 {
			return nil, fmt.Errorf("threshold %v is out of range [0, 1]", t)
		}
		opts = append(opts, textmatch.WithThreshold(*req.Threshold))
	}
	if req.AllowPartial != nil {
		opts = append(opts, textmatch.WithAllowPartial(*req.AllowPartial))
	}
	if req.PreferLonger != nil {
		opts = append(opts, textmatch.WithPreferLonger(*req.PreferLonger))
	}
	return opts, nil
}

// handleMatch exposes the bare matcher with its tie-break unchanged. A
// one-word trailing window can tie with a full match, so "basic math" against
// ["basic math", "intermediate math"] returns the longer candidate unless
// allow_partial is false. /v1/resolve prefers full windows instead.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text := req.Text
	if req.Preprocess {
		text = textmatch.PreprocessASRText(text)
	}

	start := time.Now()
	res, ok := textmatch.FindBestCommandMatch(text, req.Candidates, opts...)
	s.cfg.Metrics.RecordMatch(r.Context(), "api", time.Since(start).Seconds(), res.Score, ok)

	resp := matchResponse{Matched: ok}
	if ok {
		resp.Result = &matchResult{
			Command:       res.Command,
			Score:         res.Score,
			Distance:      res.Distance,
			MatchedWindow: res.MatchedWindow,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type resolveRequest struct {
	Text      string   `json:"text"`
	Page      string   `json:"page"`
	Language  string   `json:"language"`
	SessionID string   `json:"session_id,omitempty"`
	Lessons   []string `json:"lessons,omitempty"`
	Options   []string `json:"options,omitempty"`
}

type resolveResponse struct {
	Resolved     bool    `json:"resolved"`
	Command      string  `json:"command,omitempty"`
	Arg          string  `json:"arg,omitempty"`
	Phrase       string  `json:"phrase,omitempty"`
	Method       string  `json:"method,omitempty"`
	Score        float64 `json:"score"`
	Corrected    string  `json:"corrected,omitempty"`
	Announcement string  `json:"announcement,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	page, pageErr := voicecmd.ParsePage(req.Page)
	lang, langErr := voicecmd.ParseLanguage(req.Language)
	if err := errors.Join(pageErr, langErr); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok := s.cfg.Resolver.Resolve(r.Context(), voicecmd.Request{
		Text:      req.Text,
		Page:      page,
		Language:  lang,
		SessionID: req.SessionID,
		Lessons:   req.Lessons,
		Options:   req.Options,
	})
	writeJSON(w, http.StatusOK, resolveResponse{
		Resolved:     ok,
		Command:      string(res.Command),
		Arg:          res.Arg,
		Phrase:       res.Phrase,
		Method:       string(res.Method),
		Score:        res.Score,
		Corrected:    res.Corrected,
		Announcement: res.Announcement,
	})
}

type missesResponse struct {
	Misses []missEntry `json:"misses"`
}

type missEntry struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func (s *Server) handleMisses(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Misses == nil {
		writeError(w, http.StatusServiceUnavailable, "journal is disabled")
		return
	}
	limit := defaultMissLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxMissLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be an integer in [1, %d]", maxMissLimit))
			return
		}
		limit = n
	}

	misses, err := s.cfg.Misses.Misses(r.Context(), limit)
	if err != nil {
		observe.Logger(r.Context()).Error("server: list misses", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	resp := missesResponse{Misses: make([]missEntry, 0, len(misses))}
	for _, m := range misses {
		resp.Misses = append(resp.Misses, missEntry{Text: m.Text, Count: m.Count})
	}
	writeJSON(w, http.StatusOK, resp)
}
