package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"repurpose-backend/internal/models"
)

// Character limits enforced on generated output. Oversized text is truncated
// with an ellipsis rather than rejected.
const (
	twitterMaxChars    = 280
	linkedinMaxChars   = 1000
	newsletterMaxChars = 2000
)

// GeminiService owns the Gemini client and every prompt in the system. A
// token-bucket channel caps concurrent upstream calls.
type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{}
}

func NewGeminiService(apiKey string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-1.5-pro")
	model.SetTemperature(0.7)
	model.SetTopP(0.95)

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *GeminiService) generate(ctx context.Context, prompt string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	return extractText(resp), nil
}

// GenerateBlog writes a blog post grounded on the source transcript. Only the
// first 1000 characters of the transcript are sent as context.
func (s *GeminiService) GenerateBlog(ctx context.Context, transcript string) (string, error) {
	prompt := buildBlogPrompt(transcript)

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return "", &GenerationFailedError{Message: fmt.Sprintf("blog generation failed: %v", err)}
	}
	if strings.TrimSpace(text) == "" {
		return "", &GenerationFailedError{Message: "blog generation returned empty content"}
	}
	return text, nil
}

// GenerateSocialPosts produces exactly one Twitter and one LinkedIn post from
// the source description. The model's reply must parse as a two-element JSON
// array or the whole call fails.
func (s *GeminiService) GenerateSocialPosts(ctx context.Context, description string) ([]models.SocialPost, error) {
	prompt := buildSocialPrompt(description)

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, &GenerationFailedError{Message: fmt.Sprintf("social post generation failed: %v", err)}
	}

	posts, err := parseSocialPosts(text)
	if err != nil {
		log.Printf("Failed to parse social posts response: %q", text)
		return nil, &GenerationFailedError{Message: "invalid social posts format"}
	}
	return posts, nil
}

// GenerateNewsletter writes an email newsletter from the source description
// and metadata, capped to the newsletter length limit.
func (s *GeminiService) GenerateNewsletter(ctx context.Context, description, title, sourceType, channelTitle string) (string, error) {
	prompt := buildNewsletterPrompt(description, title, sourceType, channelTitle)

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return "", &GenerationFailedError{Message: fmt.Sprintf("newsletter generation failed: %v", err)}
	}
	if strings.TrimSpace(text) == "" {
		return "", &GenerationFailedError{Message: "newsletter generation returned empty content"}
	}
	return capNewsletter(text), nil
}

// StructureTranscript converts a raw transcript into a semantic HTML breakdown
// used by the reader view.
func (s *GeminiService) StructureTranscript(ctx context.Context, transcript string) (string, error) {
	prompt := buildTranscriptStructurePrompt(transcript)

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("HTML transcript generation failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// ChatCompletion continues an assistant conversation about a source. The
// source's type and title anchor the system context; earlier turns ride along
// as chat history and the final message is the one answered.
func (s *GeminiService) ChatCompletion(ctx context.Context, messages []models.ChatMessage, sourceType, title string) (string, error) {
	if len(messages) == 0 {
		return "", &ValidationError{Fields: map[string]string{"messages": "at least one message is required"}}
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	session := s.model.StartChat()
	session.History = []*genai.Content{
		{Role: "user", Parts: []genai.Part{genai.Text(buildChatContext(sourceType, title))}},
		{Role: "model", Parts: []genai.Part{genai.Text("Understood. How can I help with this content?")}},
	}
	for _, m := range messages[:len(messages)-1] {
		session.History = append(session.History, &genai.Content{
			Role:  chatRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return "", &GenerationFailedError{Message: fmt.Sprintf("chat completion failed: %v", err)}
	}
	reply := strings.TrimSpace(extractText(resp))
	if reply == "" {
		return "", &GenerationFailedError{Message: "chat completion returned empty content"}
	}
	return reply, nil
}

// chatRole maps API message roles onto the two roles Gemini accepts.
func chatRole(role string) string {
	if role == "assistant" || role == "model" {
		return "model"
	}
	return "user"
}

func buildChatContext(sourceType, title string) string {
	if sourceType == "" {
		sourceType = "unknown"
	}
	if title == "" {
		title = "Untitled"
	}
	return strings.TrimSpace(fmt.Sprintf(`
You are an AI assistant helping with content transformation. The current context is:
Source Type: %s
Title: %s`, sourceType, title))
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	return sb.String()
}

// cleanJSONResponse strips the markdown code fences Gemini wraps JSON in
// despite being told not to.
func cleanJSONResponse(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseSocialPosts validates the strict two-post contract and enforces the
// per-platform character limits.
func parseSocialPosts(text string) ([]models.SocialPost, error) {
	clean := cleanJSONResponse(text)

	var posts []models.SocialPost
	if err := json.Unmarshal([]byte(clean), &posts); err != nil {
		return nil, fmt.Errorf("social posts are not valid JSON: %w", err)
	}
	if len(posts) != 2 {
		return nil, fmt.Errorf("expected exactly 2 social posts, got %d", len(posts))
	}

	for i := range posts {
		if posts[i].Platform == "" || posts[i].Content == "" {
			return nil, fmt.Errorf("social post %d is missing platform or content", i)
		}
		switch posts[i].Platform {
		case "twitter":
			posts[i].Content = truncateWithEllipsis(posts[i].Content, twitterMaxChars)
		case "linkedin":
			posts[i].Content = truncateWithEllipsis(posts[i].Content, linkedinMaxChars)
		}
	}
	return posts, nil
}

// truncateWithEllipsis caps s at limit characters, replacing the tail with
// "..." when it overflows.
func truncateWithEllipsis(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

func capNewsletter(text string) string {
	return truncateWithEllipsis(text, newsletterMaxChars)
}

// head returns at most n characters of s.
func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func buildBlogPrompt(transcript string) string {
	if transcript == "" {
		transcript = "No transcript available."
	}
	return strings.TrimSpace(fmt.Sprintf(`
Context Information:
Transcript: %s...

Task:
Create a comprehensive blog post that captures the key points and adds value through additional context.

Requirements:
- Professional and engaging tone
- Well-structured content with clear sections
- SEO-optimized naturally
- Include relevant examples and data
- Add clear calls to action
- Maintain original message and context
- Format with proper paragraphs and spacing
- Include relevant statistics and metrics
- Add industry insights and trends
- Optimize for readability and engagement

Please provide the content in a clear, readable format.`, head(transcript, 1000)))
}

func buildSocialPrompt(description string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Create social media posts based on this content:
%s...

Create exactly 2 posts in this exact format (do not include backticks or json markers):
[
  {
    "platform": "twitter",
    "content": "Your tweet content with #hashtags (max 280 chars)"
  },
  {
    "platform": "linkedin",
    "content": "Your professional LinkedIn post (max 1000 chars)"
  }
]

Important:
- Keep Twitter post under 280 characters
- Keep LinkedIn post under 1000 characters
- Do not use backticks or json markers
- Use proper JSON format
- Escape quotes properly
- Do not truncate content`, head(description, 1000)))
}

func buildNewsletterPrompt(description, title, sourceType, channelTitle string) string {
	if title == "" {
		title = "Untitled"
	}
	if sourceType == "" {
		sourceType = "Unknown"
	}
	channelLine := ""
	if channelTitle != "" {
		channelLine = "Channel: " + channelTitle + "\n"
	}
	return strings.TrimSpace(fmt.Sprintf(`
Create an email newsletter based on this content:
%s...

Source Information:
Title: %s
Type: %s
%s
Requirements:
- Start with "Subject: [Your subject line]"
- Clear introduction and value proposition
- Well-structured sections with headers
- Key takeaways and insights
- Relevant statistics and data points
- Industry context and trends
- Strong call to action
- Email-friendly formatting with proper spacing
- Keep under 2000 characters total`, head(description, 1000), title, sourceType, channelLine))
}

func buildTranscriptStructurePrompt(transcript string) string {
	return strings.TrimSpace(`
You are an AI assistant analyzing a YouTube video transcript.
Your task is to generate a structured breakdown of the video, identifying key discussions and approaches.

Format your response as HTML with proper semantic markup. Use h1, h2, h3 tags for headings, p tags for paragraphs,
ul/li for lists, and span tags with appropriate classes for timestamps or speakers if present.

**Output should include:**
1. A main heading (h1) with a suitable title based on content
2. A section (h2) for "Main Topics Discussed" with a list (ul/li) of major topics
3. A section (h2) for "Key Discussions" with structured paragraphs and subheadings (h3)
4. A section (h2) for "Approach & Style" explaining how information is presented
5. A section (h2) for "Important Insights" with key takeaways
6. A section (h2) for "Conclusion" summarizing the overall message

Use appropriate HTML classes for styling (e.g., class="timestamp" for timestamps, class="speaker" for speakers,
class="highlight" for important quotes or facts). Make the HTML clean, valid, and well-formatted.

Here is the transcript:
`) + "\n" + transcript
}
