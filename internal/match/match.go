// Package match runs CV/job-description analysis and the premium advisor
// features over the request pipeline.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/recruitmate/recruitmate-cli/internal/api"
	"github.com/recruitmate/recruitmate-cli/internal/auth"
	"github.com/recruitmate/recruitmate-cli/internal/config"
	"github.com/recruitmate/recruitmate-cli/internal/models"
	"github.com/recruitmate/recruitmate-cli/internal/output"
)

// Endpoint paths.
const (
	AnalyzePath    = "/advisor/analyze/match/"
	GenerateCVPath = "/advisor/generate/cv/"
	AdvicePath     = "/advisor/advice/career/"
)

const (
	// MinCVLength and MinJobDescLength are the shortest accepted inputs.
	MinCVLength      = 50
	MinJobDescLength = 50

	// Score thresholds used when the server omits a status.
	GoodThreshold   = 0.65
	MediumThreshold = 0.45

	// batchConcurrency caps in-flight analyses in AnalyzeBatch.
	batchConcurrency = 4
)

// Service performs match analysis.
type Service struct {
	client *api.Client
	store  *auth.Store
	logger *slog.Logger
}

// NewService creates a match service.
func NewService(client *api.Client, store *auth.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{client: client, store: store, logger: logger}
}

// NewRequest builds a request with the default alpha.
func NewRequest(cvText, jobDescription string) models.MatchRequest {
	return models.MatchRequest{
		CVText:         cvText,
		JobDescription: jobDescription,
		Alpha:          config.DefaultAlpha,
	}
}

// Validate checks req before it is sent. Every problem is reported.
func Validate(req models.MatchRequest) error {
	fields := make(map[string][]string)
	if textLength(req.CVText) < MinCVLength {
		fields["cv_text"] = []string{fmt.Sprintf("CV text must be at least %d characters long", MinCVLength)}
	}
	if textLength(req.JobDescription) < MinJobDescLength {
		fields["job_description"] = []string{fmt.Sprintf("Job description must be at least %d characters long", MinJobDescLength)}
	}
	if req.Alpha < 0 || req.Alpha > 1 {
		fields["alpha"] = []string{"Alpha must be between 0 and 1"}
	}
	if len(fields) > 0 {
		return output.ErrValidationFields(fields)
	}
	return nil
}

func textLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// Analyze compares a CV with one job description.
func (s *Service) Analyze(ctx context.Context, req models.MatchRequest) (*models.MatchResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return s.analyze(ctx, req)
}

func (s *Service) analyze(ctx context.Context, req models.MatchRequest) (*models.MatchResult, error) {
	resp, err := s.client.Post(ctx, AnalyzePath, req)
	if err != nil {
		return nil, err
	}
	var result models.MatchResult
	if err := resp.UnmarshalData(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BatchResult is one job description's analysis within a batch.
type BatchResult struct {
	Index  int                 `json:"index"`
	Job    string              `json:"job"`
	Status models.MatchStatus  `json:"status"`
	Score  *int                `json:"score"`
	Result *models.MatchResult `json:"result"`
}

// AnalyzeBatch compares one CV with several job descriptions concurrently.
// Every request is validated before any is sent. The first failure cancels
// the rest. Results keep the order of jobs.
func (s *Service) AnalyzeBatch(ctx context.Context, base models.MatchRequest, jobs []string) ([]BatchResult, error) {
	reqs := make([]models.MatchRequest, len(jobs))
	for i, job := range jobs {
		req := base
		req.JobDescription = job
		if err := Validate(req); err != nil {
			e := output.AsError(err)
			if len(jobs) > 1 {
				e.Message = fmt.Sprintf("job %d: %s", i+1, e.Message)
			}
			return nil, e
		}
		reqs[i] = req
	}

	results := make([]BatchResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			r, err := s.analyze(gctx, req)
			if err != nil {
				return fmt.Errorf("job %d: %w", i+1, err)
			}
			results[i] = BatchResult{
				Index:  i + 1,
				Job:    Summarize(req.JobDescription),
				Status: ResultStatus(r),
				Score:  r.OverallScore,
				Result: r,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Debug("batch analysis complete", "jobs", len(results))
	return results, nil
}

// Summarize returns the first line of a job description, shortened.
func Summarize(job string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(job), "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) > 60 {
		return string([]rune(line)[:57]) + "..."
	}
	return line
}

// StatusForScore labels a score in [0,1].
func StatusForScore(score float64) models.MatchStatus {
	switch {
	case score >= GoodThreshold:
		return models.StatusGood
	case score >= MediumThreshold:
		return models.StatusMedium
	default:
		return models.StatusWeak
	}
}

// ResultStatus returns the overall status of r, deriving it from the
// percentage score when the server sent none.
func ResultStatus(r *models.MatchResult) models.MatchStatus {
	if r == nil {
		return models.StatusNone
	}
	if r.OverallStatus != "" {
		return r.OverallStatus
	}
	if r.OverallScore != nil {
		return StatusForScore(float64(*r.OverallScore) / 100)
	}
	return models.StatusNone
}

// GenerateCV asks the advisor for a CV tailored to a job description.
func (s *Service) GenerateCV(ctx context.Context, cvText, jobDescription string) (*models.FeatureResponse, error) {
	if err := s.requirePremium("CV generation"); err != nil {
		return nil, err
	}
	return s.feature(ctx, GenerateCVPath, map[string]string{
		"cv_text":         cvText,
		"job_description": jobDescription,
	})
}

// CareerAdvice asks the advisor for career guidance.
func (s *Service) CareerAdvice(ctx context.Context) (*models.FeatureResponse, error) {
	if err := s.requirePremium("Career advice"); err != nil {
		return nil, err
	}
	return s.feature(ctx, AdvicePath, struct{}{})
}

func (s *Service) feature(ctx context.Context, path string, body any) (*models.FeatureResponse, error) {
	resp, err := s.client.Post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	var out models.FeatureResponse
	if err := resp.UnmarshalData(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// requirePremium checks the cached user only. The server is not consulted.
func (s *Service) requirePremium(feature string) error {
	if !s.store.Authenticated() {
		return output.ErrAuth("Authentication required")
	}
	if u := s.store.CachedUser(); u == nil || !u.IsPremium {
		return output.ErrPremium(feature)
	}
	return nil
}
