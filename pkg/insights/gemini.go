package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/errors"
	"wellbeing-server/pkg/models"
	"wellbeing-server/pkg/version"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Config holds the generative insight client configuration.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiClient calls the Gemini REST API to produce advisory text from
// a usage window.
type GeminiClient struct {
	logger     *logrus.Entry
	config     Config
	httpClient *http.Client
	baseURL    string
}

// NewGeminiClient creates a Gemini-backed insight client.
func NewGeminiClient(logger *logrus.Logger, config Config) *GeminiClient {
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &GeminiClient{
		logger:     logger.WithField("component", "gemini_client"),
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    defaultBaseURL,
	}
}

// Enabled reports whether an API key is configured.
func (c *GeminiClient) Enabled() bool {
	return c.config.APIKey != ""
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GenerateInsights asks the model for advisory lines about the usage
// window. Callers are expected to fall back locally on any error.
func (c *GeminiClient) GenerateInsights(ctx context.Context, window []models.DailyAggregate) ([]string, error) {
	if !c.Enabled() {
		return nil, errors.Wrap(errors.ErrInsightUnavailable, "no API key configured")
	}

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: buildPrompt(window)}},
		}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode insight request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.config.Model, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build insight request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInsightUnavailable, "insight request failed").
			WithField("model", c.config.Model)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrap(errors.ErrInsightUnavailable, "insight service returned error").
			WithField("status", resp.StatusCode)
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(errors.ErrInsightUnavailable, "failed to decode insight response")
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, errors.Wrap(errors.ErrInsightUnavailable, "empty insight response")
	}

	var lines []string
	for _, raw := range strings.Split(decoded.Candidates[0].Content.Parts[0].Text, "\n") {
		line := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "-*0123456789. "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, errors.Wrap(errors.ErrInsightUnavailable, "no usable insight lines")
	}

	c.logger.WithField("lines", len(lines)).Debug("Generated insights via Gemini")
	return lines, nil
}

func buildPrompt(window []models.DailyAggregate) string {
	var b strings.Builder
	b.WriteString("You are a digital wellbeing coach. Based on the daily screen time summary below, ")
	b.WriteString("give 3 short, practical suggestions (one per line, no preamble):\n")
	for _, day := range window {
		fmt.Fprintf(&b, "- %s: total %.0f min, night %.0f min, %d binge sessions, social %.0f min\n",
			day.Date.Format("2006-01-02"), day.TotalDuration, day.NightUsage,
			day.BingeSessions, day.SocialMediaTime)
	}
	return b.String()
}
