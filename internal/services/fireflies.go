package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/advisorkit/consultant-backend/internal/logger"
)

// FirefliesClient fetches finished meeting transcripts from the Fireflies
// GraphQL API.
type FirefliesClient interface {
	GetTranscript(ctx context.Context, transcriptID string) (*Transcript, error)
}

type Transcript struct {
	ID        string
	Title     string
	Date      *time.Time
	Sentences []Sentence
}

type Sentence struct {
	Speaker string
	Text    string
}

// FormatTranscript flattens sentences into "<speaker>: <text>" lines, one per
// sentence, skipping empty text.
func (t *Transcript) FormatTranscript() string {
	var sb strings.Builder
	for _, s := range t.Sentences {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(s.Speaker)
		if speaker == "" {
			speaker = "Unknown"
		}
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

type firefliesClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewFirefliesClient(log *logger.Logger) (FirefliesClient, error) {
	apiKey := os.Getenv("FIREFLIES_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing FIREFLIES_API_KEY")
	}

	baseURL := os.Getenv("FIREFLIES_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.fireflies.ai"
	}

	return &firefliesClient{
		log:        log.With("service", "FirefliesClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

const transcriptQuery = `query Transcript($id: String!) {
  transcript(id: $id) {
    id
    title
    date
    sentences {
      speaker_name
      text
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type transcriptResponse struct {
	Data struct {
		Transcript *struct {
			ID        string   `json:"id"`
			Title     string   `json:"title"`
			Date      *float64 `json:"date"`
			Sentences []struct {
				SpeakerName string `json:"speaker_name"`
				Text        string `json:"text"`
			} `json:"sentences"`
		} `json:"transcript"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *firefliesClient) GetTranscript(ctx context.Context, transcriptID string) (*Transcript, error) {
	body := graphqlRequest{
		Query:     transcriptQuery,
		Variables: map[string]any{"id": transcriptID},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fireflies request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fireflies http %d: %s", resp.StatusCode, string(raw))
	}

	var parsed transcriptResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("fireflies decode: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("fireflies graphql: %s", parsed.Errors[0].Message)
	}
	tr := parsed.Data.Transcript
	if tr == nil {
		return nil, fmt.Errorf("fireflies transcript %s not found", transcriptID)
	}

	out := &Transcript{ID: tr.ID, Title: tr.Title}
	if tr.Date != nil {
		// Fireflies reports meeting dates as epoch milliseconds.
		t := time.UnixMilli(int64(*tr.Date)).UTC()
		out.Date = &t
	}
	for _, s := range tr.Sentences {
		out.Sentences = append(out.Sentences, Sentence{Speaker: s.SpeakerName, Text: s.Text})
	}
	return out, nil
}
