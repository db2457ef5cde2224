package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/reelgen/reelgen/src/internal/domain"
)

const restBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// RESTClient talks to the Gemini REST API directly, sending artifacts as
// inline base64 parts. It is the secondary analysis strategy and also
// carries the chat-style plan revision call.
type RESTClient struct {
	keys   *KeyRing
	model  string
	client *http.Client
}

func NewRESTClient(keys *KeyRing, model string) *RESTClient {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &RESTClient{
		keys:   keys,
		model:  model,
		client: &http.Client{Timeout: 180 * time.Second},
	}
}

type restPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *restInlineData `json:"inline_data,omitempty"`
}

type restInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type restRequest struct {
	Contents          []restContent `json:"contents"`
	SystemInstruction *restContent  `json:"system_instruction,omitempty"`
}

type restResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *RESTClient) Name() string { return "gemini-rest" }

func (c *RESTClient) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	parts := []restPart{{Text: analysisPrompt}}

	attach := func(path, mime string) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		parts = append(parts, restPart{InlineData: &restInlineData{
			MIMEType: mime,
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
		return nil
	}

	if err := attach(req.VideoPath, "video/mp4"); err != nil {
		return nil, err
	}
	if err := attach(req.CharacterImagePath, "image/jpeg"); err != nil {
		return nil, err
	}
	if err := attach(req.AudioPath, "audio/mpeg"); err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, restRequest{
		Contents: []restContent{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return nil, err
	}
	return parseAnalysisResult(text)
}

// RevisePlan asks the model to rewrite the plan, carrying the prior plan
// and analysis as the system instruction like a chat follow-up.
func (c *RESTClient) RevisePlan(ctx context.Context, analysis, plan, request string) (string, error) {
	text, err := c.generate(ctx, restRequest{
		SystemInstruction: &restContent{
			Parts: []restPart{{Text: revisionSystemPrompt(plan, analysis)}},
		},
		Contents: []restContent{{
			Role:  "user",
			Parts: []restPart{{Text: "Please modify the video generation plan based on this request: " + request}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("plan revision failed: %w", err)
	}
	return text, nil
}

func (c *RESTClient) generate(ctx context.Context, body restRequest) (string, error) {
	if c.keys.Empty() {
		return "", fmt.Errorf("no Gemini API keys configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", restBaseURL, c.model, c.keys.Next())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Gemini API error (status %d): %s", resp.StatusCode, string(raw))
	}

	var parsed restResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	var sb bytes.Buffer
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// TextOnly is the last-resort analysis strategy: no binary artifacts are
// sent, only a description of what was uploaded. Used when every upload
// path to the model has failed.
type TextOnly struct {
	Client *RESTClient
}

func (t TextOnly) Name() string { return "gemini-text-only" }

func (t TextOnly) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	fileInfo := "Video file: " + req.VideoPath
	if req.CharacterImagePath != "" {
		fileInfo += "\nCharacter image: " + req.CharacterImagePath
	}
	if req.AudioPath != "" {
		fileInfo += "\nAudio file: " + req.AudioPath
	}

	text, err := t.Client.generate(ctx, restRequest{
		Contents: []restContent{{
			Role:  "user",
			Parts: []restPart{{Text: textOnlyPrompt(fileInfo)}},
		}},
	})
	if err != nil {
		return nil, err
	}
	return parseAnalysisResult(text)
}
