package match

import (
	"encoding/json"

	"github.com/recruitmate/recruitmate-cli/internal/auth"
	"github.com/recruitmate/recruitmate-cli/internal/models"
)

// Session keys. All carry auth.SessionPrefix so logout removes them.
const (
	KeyCVText         = auth.SessionPrefix + "cv_text"
	KeyJobDescription = auth.SessionPrefix + "job_description"
	KeyResult         = auth.SessionPrefix + "result"
	KeyInputMode      = auth.SessionPrefix + "input_mode"
)

// Input modes.
const (
	InputText = "text"
	InputFile = "file"
)

// Session is the in-progress scan: its inputs and the last result.
type Session struct {
	CVText         string              `json:"cv_text,omitempty"`
	JobDescription string              `json:"job_description,omitempty"`
	InputMode      string              `json:"input_mode,omitempty"`
	Result         *models.MatchResult `json:"result,omitempty"`
}

// Empty reports whether nothing is saved.
func (s Session) Empty() bool {
	return s.CVText == "" && s.JobDescription == "" && s.InputMode == "" && s.Result == nil
}

// SaveSession stores sess. Empty fields remove their key.
func (s *Service) SaveSession(sess Session) error {
	var result string
	if sess.Result != nil {
		data, err := json.Marshal(sess.Result)
		if err != nil {
			return err
		}
		result = string(data)
	}
	s.store.Set(KeyCVText, sess.CVText)
	s.store.Set(KeyJobDescription, sess.JobDescription)
	s.store.Set(KeyInputMode, sess.InputMode)
	s.store.Set(KeyResult, result)
	return nil
}

// LoadSession returns the saved scan. A malformed result is dropped.
func (s *Service) LoadSession() Session {
	sess := Session{
		CVText:         s.store.Get(KeyCVText),
		JobDescription: s.store.Get(KeyJobDescription),
		InputMode:      s.store.Get(KeyInputMode),
	}
	if raw := s.store.Get(KeyResult); raw != "" {
		var r models.MatchResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			s.logger.Debug("discarding malformed saved result", "error", err)
		} else {
			sess.Result = &r
		}
	}
	return sess
}

// ClearSession removes every saved scan key.
func (s *Service) ClearSession() {
	for _, key := range []string{KeyCVText, KeyJobDescription, KeyResult, KeyInputMode} {
		s.store.Remove(key)
	}
}
