package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// minTextLength is the threshold under which a PDF text layer is considered
// absent (scanned paper) and the page is rendered for the vision path instead.
const minTextLength = 40

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ScanReceipt analyzes a receipt attachment and extracts a draft record.
// Digital eBons carry a text layer, which is cheaper and more accurate to
// send than a rendered page; scanned or photographed receipts go through
// the vision path.
func (g *Gemini) ScanReceipt(data []byte, contentType string) (*DraftReceipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	parts, err := g.buildParts(data, contentType)
	if err != nil {
		return nil, err
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	// Extract text response
	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	draft, err := parseDraftJSON(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing draft record: %w", err)
	}

	return draft, nil
}

func (g *Gemini) buildParts(data []byte, contentType string) ([]genai.Part, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "application/pdf" {
		text, err := ExtractText(data)
		if err == nil && len(text) >= minTextLength {
			return []genai.Part{
				genai.Text(receiptScanPrompt),
				genai.Text("Receipt text:\n\n" + text),
			}, nil
		}
	}

	finalImageData, _, _, err := prepareImageData(data, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects just the format suffix (e.g., "png"), not the
	// full MIME type. After prepareImageData, everything is PNG.
	return []genai.Part{
		genai.ImageData("png", finalImageData),
		genai.Text(receiptScanPrompt),
	}, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
