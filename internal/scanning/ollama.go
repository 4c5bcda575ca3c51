package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama implements the Scanner interface using a local Ollama instance.
// Recommended vision models for receipt extraction:
//   - llava:1.6 (best balance of accuracy and speed)
//   - qwen2-vl:7b (good OCR capabilities)
//   - llava-phi3 (smaller, faster, but less accurate)
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Scanner instance
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // local vision models can be slow
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ScanReceipt analyzes a receipt attachment and extracts a draft record.
// When the PDF carries a text layer the text is sent instead of an image,
// which lets non-vision models handle digital eBons too.
func (o *Ollama) ScanReceipt(data []byte, contentType string) (*DraftReceipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading German grocery receipts (REWE eBons). You extract accurate structured data from them.",
			},
		},
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	textSent := false
	if mimeType == "application/pdf" {
		if text, err := ExtractText(data); err == nil && len(text) >= minTextLength {
			reqBody.Messages = append(reqBody.Messages, ollamaMessage{
				Role:    "user",
				Content: receiptScanPrompt + "\n\nReceipt text:\n\n" + text,
			})
			textSent = true
		}
	}

	if !textSent {
		finalImageData, _, _, err := prepareImageData(data, contentType)
		if err != nil {
			return nil, err
		}
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{
			Role:    "user",
			Content: receiptScanPrompt,
		})
		reqBody.Images = []string{base64.StdEncoding.EncodeToString(finalImageData)}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	draft, err := parseDraftJSON(chatResp.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing draft record: %w", err)
	}

	return draft, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
