package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/tendant/scene-validator/pkg/validation"
)

// GeminiConfig configures the Gemini content-analysis backend.
type GeminiConfig struct {
	// Endpoint is the API base URL. Optional; defaults to the public
	// generativelanguage endpoint.
	Endpoint string

	// APIKey is required.
	APIKey string

	// Model is the model name. Optional; defaults to gemini-1.5-pro-latest.
	Model string

	// MaxFrames bounds how many sampled frames are attached to a request.
	// Optional; defaults to 5. Ignored when no frame extractor is set.
	MaxFrames int
}

// WithDefaults fills in default values for optional fields.
func (c *GeminiConfig) WithDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://generativelanguage.googleapis.com"
	}
	if c.Model == "" {
		c.Model = "gemini-1.5-pro-latest"
	}
	if c.MaxFrames == 0 {
		c.MaxFrames = 5
	}
}

// Gemini analyzes scene content via the Gemini generateContent API.
type Gemini struct {
	cfg        GeminiConfig
	frames     FrameExtractor
	httpClient *http.Client
}

// NewGemini creates the analyzer. frames may be nil, in which case the
// request carries declared metadata only.
func NewGemini(cfg GeminiConfig, frames FrameExtractor) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cfg.WithDefaults()
	return &Gemini{
		cfg:    cfg,
		frames: frames,
		// Per-call deadlines come from the caller's context.
		httpClient: &http.Client{},
	}, nil
}

// --- Gemini wire types ---

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// verdict is the JSON document the model is instructed to return.
type verdict struct {
	DetectedTags    []string `json:"detected_tags"`
	EstimatedRating string   `json:"estimated_rating"`
	FlaggedConcerns []string `json:"flagged_concerns"`
	Summary         string   `json:"summary"`
	Confidence      float64  `json:"confidence"`
}

// Analyze implements Analyzer.
func (g *Gemini) Analyze(ctx context.Context, mediaRef string, meta validation.Metadata) (*ContentResult, error) {
	parts := []geminiPart{{Text: buildPrompt(meta)}}

	if g.frames != nil {
		frames, err := g.frames.ExtractFrames(ctx, mediaRef, g.cfg.MaxFrames)
		if err != nil {
			// Frame extraction is best effort; analysis can proceed on
			// metadata alone.
			log.Printf("frame extraction failed for %s: %v", mediaRef, err)
		}
		for _, frame := range frames {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(frame),
			}})
		}
	}

	text, err := g.generate(ctx, parts)
	if err != nil {
		return nil, err
	}

	var v verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("parse gemini verdict: %w", err)
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}

	return &ContentResult{
		DetectedTags:    v.DetectedTags,
		EstimatedRating: v.EstimatedRating,
		FlaggedConcerns: v.FlaggedConcerns,
		Summary:         v.Summary,
		Confidence:      v.Confidence,
		Status:          validation.SourceOK,
	}, nil
}

// Recommend implements Recommender with a second generateContent call over
// the non-passing outcomes.
func (g *Gemini) Recommend(ctx context.Context, outcomes []validation.RuleOutcome) ([]validation.Recommendation, error) {
	issues := make([]validation.RuleOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Verdict != validation.VerdictPass {
			issues = append(issues, o)
		}
	}
	if len(issues) == 0 {
		return nil, nil
	}

	text, err := g.generate(ctx, []geminiPart{{Text: buildRecommendPrompt(issues)}})
	if err != nil {
		return nil, err
	}

	var recs []validation.Recommendation
	if err := json.Unmarshal([]byte(text), &recs); err != nil {
		return nil, fmt.Errorf("parse gemini recommendations: %w", err)
	}
	return recs, nil
}

// generate posts one generateContent request and returns the first
// candidate's text with any code fence stripped.
func (g *Gemini) generate(ctx context.Context, parts []geminiPart) (string, error) {
	body, err := json.Marshal(geminiRequest{Contents: []geminiContent{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.cfg.Endpoint, g.cfg.Model, g.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		// Network-level failures (timeouts included) are worth a retry.
		return "", Transient(fmt.Errorf("gemini request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("gemini status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", Transient(err)
		}
		return "", err
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return stripFences(out.Candidates[0].Content.Parts[0].Text), nil
}

func buildRecommendPrompt(issues []validation.RuleOutcome) string {
	var b strings.Builder
	b.WriteString("You are a media optimization expert. These validation rules did not pass:\n\n")
	for _, o := range issues {
		fmt.Fprintf(&b, "- rule %q (%s): %s (evaluated %q, expected %q)\n",
			o.RuleID, o.Severity, o.Message, o.Evaluated, o.Expected)
	}
	b.WriteString("\nFor each rule, give one specific, actionable fix.")
	b.WriteString(" Respond with a single JSON array and nothing else:\n")
	b.WriteString(`[{"rule_id": "...", "action": "..."}]`)
	return b.String()
}

func buildPrompt(meta validation.Metadata) string {
	var b strings.Builder
	b.WriteString("You are a media content validator. Analyze this scene using the declared metadata")
	b.WriteString(" and any attached frames.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", orUnknown(meta.Title))
	fmt.Fprintf(&b, "Description: %s\n", orUnknown(meta.Description))
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(meta.Tags, ", "))
	fmt.Fprintf(&b, "Intended audience: %s\n", orUnknown(meta.IntendedAudience))
	fmt.Fprintf(&b, "Declared content rating: %s\n", orUnknown(meta.ContentRating))
	b.WriteString("\nRespond with a single JSON object and nothing else:\n")
	b.WriteString(`{"detected_tags": [...], "estimated_rating": "...", "flagged_concerns": [...], "summary": "...", "confidence": 0.0}`)
	b.WriteString("\nflagged_concerns lists content issues in order of severity; confidence is in [0,1].")
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

// stripFences removes a markdown code fence around the model's JSON output,
// which Gemini adds despite instructions often enough to handle here.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
