package gemini

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// APICall issues one content-generation request against the Gemini API
// with a single key. Quota failures surface as errors whose message
// contains "quota"/"limit", which is what the pool's rotation keys on.
func APICall(ctx context.Context, apiKey, model, prompt string, cfg GenerationConfig) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		MaxOutputTokens: cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

// Construct builds a client for the key without calling the model. Used by
// Pool.Init to pick a starting cursor.
func Construct(ctx context.Context, apiKey, _ string) error {
	_, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	return err
}
