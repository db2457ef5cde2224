package gemini

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/reelgen/reelgen/src/internal/domain"
)

// Client is the primary analysis strategy: it pushes the artifacts through
// the Gemini Files API and asks the model to look at them directly. On
// failure it retries once on a rotated key with the fallback model.
type Client struct {
	keys          *KeyRing
	model         string
	fallbackModel string
}

func NewClient(keys *KeyRing, model, fallbackModel string) *Client {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if fallbackModel == "" {
		fallbackModel = "gemini-1.5-flash"
	}
	return &Client{keys: keys, model: model, fallbackModel: fallbackModel}
}

func (c *Client) Name() string { return "gemini-files" }

func (c *Client) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	result, err := c.analyzeWithModel(ctx, c.model, req)
	if err == nil {
		return result, nil
	}

	log.Printf("[Gemini] Analysis with %s failed: %v. Retrying with %s on next key...", c.model, err, c.fallbackModel)
	retried, retryErr := c.analyzeWithModel(ctx, c.fallbackModel, req)
	if retryErr != nil {
		return nil, fmt.Errorf("analysis failed with both models: %v | retry: %v", err, retryErr)
	}
	return retried, nil
}

func (c *Client) analyzeWithModel(ctx context.Context, modelName string, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if c.keys.Empty() {
		return nil, fmt.Errorf("no Gemini API keys configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.keys.Next()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	type artifact struct {
		path string
		mime string
	}
	artifacts := []artifact{{req.VideoPath, "video/mp4"}}
	if req.CharacterImagePath != "" {
		artifacts = append(artifacts, artifact{req.CharacterImagePath, "image/jpeg"})
	}
	if req.AudioPath != "" {
		artifacts = append(artifacts, artifact{req.AudioPath, "audio/mpeg"})
	}

	parts := []genai.Part{genai.Text(analysisPrompt)}
	for _, a := range artifacts {
		file, err := c.uploadAndWait(ctx, client, a.path, a.mime)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.FileData{MIMEType: a.mime, URI: file.URI})
	}

	model := client.GenerativeModel(modelName)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}

	return parseAnalysisResult(responseText(resp))
}

// uploadAndWait pushes one file through the Files API and polls until the
// service finishes ingesting it.
func (c *Client) uploadAndWait(ctx context.Context, client *genai.Client, path, mime string) (*genai.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	file, err := client.UploadFile(ctx, "", f, &genai.UploadFileOptions{MIMEType: mime})
	if err != nil {
		return nil, fmt.Errorf("file upload failed: %w", err)
	}

	for file.State == genai.FileStateProcessing {
		log.Printf("[Gemini] Waiting for file %s to be processed...", file.Name)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
		file, err = client.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to poll file state: %w", err)
		}
	}

	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("file processing failed: %s - state: %v", file.Name, file.State)
	}
	return file, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
