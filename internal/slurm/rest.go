package slurm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"resty.dev/v3"

	"github.com/kqclabs/kqc/internal/cluster"
	"github.com/kqclabs/kqc/internal/ctxlog"
)

// RestSubmitter submits batch scripts through a slurmrestd endpoint.
// The profile's rest_url points at a versioned API root, e.g.
// https://cluster.example/slurm/v0.0.39.
type RestSubmitter struct {
	client *resty.Client
	token  string
}

// NewRestSubmitter builds a submitter from a cluster profile. The JWT
// is read from the environment variable the profile names.
func NewRestSubmitter(p cluster.Profile) (*RestSubmitter, error) {
	token := os.Getenv(p.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("cluster token: environment variable %s is not set", p.TokenEnv)
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(p.RestURL, "/")).
		SetHeader("X-SLURM-USER-TOKEN", token)
	return &RestSubmitter{client: client, token: token}, nil
}

// Close releases the underlying HTTP client.
func (s *RestSubmitter) Close() error {
	return s.client.Close()
}

type jobProperties struct {
	Name                    string   `json:"name"`
	CurrentWorkingDirectory string   `json:"current_working_directory"`
	Environment             []string `json:"environment"`
	Dependency              string   `json:"dependency,omitempty"`
}

type jobSubmission struct {
	Script string        `json:"script"`
	Job    jobProperties `json:"job"`
}

type apiError struct {
	Error       string `json:"error"`
	ErrorNumber int    `json:"error_number"`
}

type submitResponse struct {
	JobID  int        `json:"job_id"`
	Errors []apiError `json:"errors,omitempty"`
}

// Submit posts the script content to /job/submit and returns the
// allocated job id.
func (s *RestSubmitter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	script, err := os.ReadFile(req.ScriptPath)
	if err != nil {
		return "", fmt.Errorf("read batch script: %w", err)
	}

	body := jobSubmission{
		Script: string(script),
		Job: jobProperties{
			Name:                    strings.TrimSuffix(filepath.Base(req.ScriptPath), ".sh"),
			CurrentWorkingDirectory: req.WorkDir,
			// slurmrestd rejects submissions with an empty environment.
			Environment: []string{"PATH=/bin:/usr/bin"},
			Dependency:  req.Dependency,
		},
	}

	var out submitResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/job/submit")
	if err != nil {
		return "", fmt.Errorf("slurmrestd submit: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("slurmrestd submit: %s: %s", res.Status(), res.String())
	}
	if len(out.Errors) > 0 {
		return "", fmt.Errorf("slurmrestd submit: %s", out.Errors[0].Error)
	}
	if out.JobID == 0 {
		return "", fmt.Errorf("slurmrestd submit: no job id in response")
	}

	ctxlog.FromContext(ctx).Debug("Job accepted by slurmrestd.", "job_id", out.JobID)
	return strconv.Itoa(out.JobID), nil
}
