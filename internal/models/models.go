// Package models provides canonical type definitions for RecruitMate API entities.
package models

import "strings"

// User is the account profile returned by the auth endpoints.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"`
	DateJoined string `json:"date_joined,omitempty"`
	IsPremium  bool   `json:"is_premium"`
}

// DisplayName returns the best human-readable name for u.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// Plan returns "premium" or "free".
func (u *User) Plan() string {
	if u != nil && u.IsPremium {
		return "premium"
	}
	return "free"
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	User         *User  `json:"user"`
}

// LoginRequest accepts either a username or an email.
type LoginRequest struct {
	UsernameEmail string `json:"username_email"`
	Password      string `json:"password"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate is a partial update of the editable profile fields.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.FirstName == nil && p.LastName == nil && p.BirthDate == nil
}

// MatchStatus is a coarse quality label for a score.
type MatchStatus string

const (
	StatusGood   MatchStatus = "Good"
	StatusMedium MatchStatus = "Medium"
	StatusWeak   MatchStatus = "Weak"
	StatusNone   MatchStatus = "None"
)

// MatchRequest asks the advisor to compare a CV with a job description.
type MatchRequest struct {
	JobDescription string  `json:"job_description"`
	CVText         string  `json:"cv_text"`
	Alpha          float64 `json:"alpha"`
	AIDeepAnalysis bool    `json:"ai_deep_analysis"`
}

// TopMatch pairs a job requirement with the CV passage that best covers it.
type TopMatch struct {
	Status          MatchStatus `json:"status"`
	JobRequirement  string      `json:"job_requirement"`
	CVMatch         string      `json:"cv_match"`
	CVSection       string      `json:"cv_section"`
	ScorePercentage *float64    `json:"score_percentage"`
}

// MatchResult is the curated analysis. Scores are only present for
// premium accounts.
type MatchResult struct {
	OverallScore            *int        `json:"overall_score"`
	OverallStatus           MatchStatus `json:"overall_status"`
	SemanticStatus          MatchStatus `json:"semantic_status"`
	KeywordsStatus          MatchStatus `json:"keywords_status"`
	ActionVerbsStatus       MatchStatus `json:"action_verbs_status"`
	TopMatches              []TopMatch  `json:"top_matches"`
	MissingKeywords         []string    `json:"missing_keywords"`
	UnaddressedRequirements []string    `json:"unaddressed_requirements"`
	HiddenKeywordsCount     int         `json:"hidden_keywords_count"`
	AIReport                *string     `json:"ai_report"`
}

// FeatureResponse is the body of the premium advisor endpoints.
type FeatureResponse struct {
	Status  string `json:"status,omitempty"`
	Content string `json:"content,omitempty"`
}
