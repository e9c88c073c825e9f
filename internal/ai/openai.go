package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/curiobot/curio/internal/models"
)

const (
	ideateModel = "gpt-4o"
	locateModel = "gpt-4o-search-preview"

	retryBaseDelay = 2 * time.Second
	maxRetries     = 2
)

// OpenAIClient is the generation provider behind both pipeline stages.
// Stage A (ideate) runs a plain chat completion; Stage B (locate) runs
// a search-augmented completion.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: &client}
}

type ideationResponse struct {
	Recommendations []models.ArticleIdea `json:"recommendations"`
}

// GenerateIdeas asks the model for count article recommendations fitted
// to the weighted tags, avoiding previously seen titles. Ideas carry no
// URL; locating one is Stage B's job.
func (c *OpenAIClient) GenerateIdeas(ctx context.Context, tags []models.TagWeight, seenTitles []string, count int) ([]models.ArticleIdea, error) {
	prompt := buildIdeationPrompt(tags, seenTitles, count)

	content, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model: ideateModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You are a well-read literary curator. You recommend essays, articles and papers worth a reader's time. Respond only with JSON."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Temperature: openai.Float(0.8),
		MaxTokens:   openai.Int(2000),
	})
	if err != nil {
		return nil, err
	}

	ideas, err := parseIdeas(content)
	if err != nil {
		return nil, fmt.Errorf("parsing ideation output: %w", err)
	}
	if len(ideas) == 0 {
		return nil, fmt.Errorf("model returned no recommendations")
	}
	return ideas, nil
}

type locateResponse struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// LocateURL asks a search-augmented model for the exact working URL of
// an idea. The returned URL is validated as absolute http(s); anything
// else is an error the caller degrades to a search fallback.
func (c *OpenAIClient) LocateURL(ctx context.Context, idea models.ArticleIdea) (string, string, error) {
	content, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model: locateModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(buildLocatePrompt(idea)),
					},
				},
			},
		},
		WebSearchOptions: openai.ChatCompletionNewParamsWebSearchOptions{},
	})
	if err != nil {
		return "", "", err
	}

	payload, err := ExtractJSON(content)
	if err != nil {
		return "", "", fmt.Errorf("parsing locate output: %w", err)
	}

	var located locateResponse
	if err := json.Unmarshal([]byte(payload), &located); err != nil {
		return "", "", fmt.Errorf("parsing locate output: %w", err)
	}

	if err := validateArticleURL(located.URL); err != nil {
		return "", "", err
	}
	return located.URL, located.Source, nil
}

// complete runs one chat completion with bounded retry on rate-limit
// errors. Other errors propagate immediately.
func (c *OpenAIClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	bo.Multiplier = 2

	return backoff.RetryWithData(func() (string, error) {
		response, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if isRateLimited(err) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		if len(response.Choices) == 0 {
			return "", backoff.Permanent(fmt.Errorf("no response from openai"))
		}
		return response.Choices[0].Message.Content, nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}

// isRateLimited recognizes rate-limit-shaped provider errors: HTTP 429
// or a message mentioning rate/quota limits.
func isRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") || strings.Contains(msg, "quota")
}

func validateArticleURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("unusable URL %q: %w", raw, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("unusable URL %q", raw)
	}
	return nil
}

func parseIdeas(content string) ([]models.ArticleIdea, error) {
	payload, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	var wrapped ideationResponse
	if err := json.Unmarshal([]byte(payload), &wrapped); err == nil && len(wrapped.Recommendations) > 0 {
		return wrapped.Recommendations, nil
	}

	// Some completions return the list bare.
	var bare []models.ArticleIdea
	if err := json.Unmarshal([]byte(payload), &bare); err == nil {
		return bare, nil
	}

	return nil, fmt.Errorf("unrecognized ideation payload")
}

func buildIdeationPrompt(tags []models.TagWeight, seenTitles []string, count int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Recommend exactly %d pieces of writing (essays, long-form articles, classic papers) for a reader with these weighted interests:\n", count))
	for _, tw := range tags {
		sb.WriteString(fmt.Sprintf("- %s (%d%%)\n", tw.Tag, tw.Weight))
	}

	sb.WriteString("\nRequirements:\n")
	sb.WriteString("- At least one pick must be a \"classic\" (canonical, widely celebrated) and at least one a \"gem\" (excellent but little-known).\n")
	sb.WriteString("- Do not include URLs; title, author and publication only.\n")
	sb.WriteString("- tags: up to 3 of the reader's interest tags per pick.\n")

	if len(seenTitles) > 0 {
		sb.WriteString("\nThe reader has already seen these, never recommend them again:\n")
		for _, title := range seenTitles {
			sb.WriteString(fmt.Sprintf("- %s\n", title))
		}
	}

	sb.WriteString("\nRespond with JSON format:\n")
	sb.WriteString(`{"recommendations": [{"title": "...", "author": "...", "publication": "...", "description": "1-2 sentences", "reason": "why this fits the reader", "tags": ["tag1"], "category": "classic"}]}`)

	return sb.String()
}

func buildLocatePrompt(idea models.ArticleIdea) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Find the exact working URL for %q by %s", idea.Title, idea.Author))
	if idea.Publication != "" {
		sb.WriteString(fmt.Sprintf(", published in %s", idea.Publication))
	}
	sb.WriteString(".\n\n")
	sb.WriteString("Preference order: direct PDF, then the original publication page, then a mirror or archive copy.\n")
	sb.WriteString("If the exact piece cannot be found, the closest matching piece by the same author is acceptable.\n")
	sb.WriteString("Respond with JSON only: {\"url\": \"https://...\", \"source\": \"name of the site hosting it\"}")

	return sb.String()
}
