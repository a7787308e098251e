package extract

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"google.golang.org/genai"
)

const geminiOCRPrompt = `You are an OCR engine. Transcribe the attached document completely.
Return a JSON array where each element is {"page_number": <n>, "text": "<markdown>"}.
- Preserve reading order and paragraph/heading structure as markdown.
- Do not summarize, translate or add commentary.
- Output ONLY the JSON array.`

type geminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

type geminiProvider struct {
	apiKey string
	model  string
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Extract(ctx context.Context, data []byte, filename string) ([]Page, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: detectMIME(filename), Data: data}},
		{Text: geminiOCRPrompt},
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		p.model,
		[]*genai.Content{{Parts: parts}},
		nil,
	)
	if err != nil {
		return nil, err
	}
	payload := strings.TrimSpace(resp.Text())
	if payload == "" {
		return nil, fmt.Errorf("empty ocr response")
	}
	return DecodePagePayload(ctx, payload), nil
}

func detectMIME(filename string) string {
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func createGeminiFactory(args interface{}) (IExtractProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeProviderConfig(args, cfg); err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &geminiProvider{
		apiKey: strings.TrimSpace(cfg.APIKey),
		model:  model,
	}, nil
}

func init() {
	Register("gemini", createGeminiFactory)
}
