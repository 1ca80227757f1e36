// Package detect produces the classifier evidence signal by asking a hosted
// vision model whether an image is AI-generated. Any internal failure is
// surfaced as an error to the orchestrator, which records the signal as
// absent; errors never reach the fusion engine.
package detect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/imagegate/internal/model"
)

// Provider is the detection collaborator contract.
type Provider interface {
	Detect(ctx context.Context, data []byte) (*model.DetectionSignal, error)
}

// detectPrompt requests a strict JSON score map so the reply parses without
// any prose handling. Label names follow the classifier conventions the
// score mapping understands.
const detectPrompt = `Estimate whether this image was generated by an AI model
(diffusion, GAN, or similar) or captured/created by a human.

Reply with ONLY a JSON object, no prose, of the form:
{"scores": {"artificial": <0..1>, "human": <0..1>}}

The two scores must sum to 1. Consider rendering artifacts, texture
statistics, anatomy, lighting consistency, and text fidelity.`

const maxReplyTokens = 256

// AnthropicDetector implements Provider over the Anthropic vision API.
type AnthropicDetector struct {
	client  sdk.Client
	model   string
	limiter *rate.Limiter
}

// NewAnthropic creates a detector. requestsPerMinute <= 0 disables rate
// limiting.
func NewAnthropic(apiKey, modelID string, requestsPerMinute int) *AnthropicDetector {
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), 1)
	}
	return &AnthropicDetector{
		client:  sdk.NewClient(option.WithAPIKey(apiKey)),
		model:   modelID,
		limiter: limiter,
	}
}

// Detect classifies the image bytes.
func (d *AnthropicDetector) Detect(ctx context.Context, data []byte) (*model.DetectionSignal, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "detect: rate limit wait")
		}
	}

	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, eris.New("detect: payload is not an image")
	}

	msg, err := d.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(d.model),
		MaxTokens: maxReplyTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(
				sdk.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(data)),
				sdk.NewTextBlock(detectPrompt),
			),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "detect: vision request")
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	signal, err := parseReply(reply.String(), d.model)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("detect: classifier verdict",
		zap.String("model", d.model),
		zap.Bool("is_ai_generated", signal.IsAIGenerated),
		zap.Float64("confidence", signal.Confidence),
	)
	return signal, nil
}

// aiLabelKeys and realLabelKeys map classifier label names onto the two
// verdict sides by substring match.
var (
	aiLabelKeys   = []string{"artificial", "ai", "fake", "generated", "synthetic"}
	realLabelKeys = []string{"human", "real", "authentic", "natural"}
)

// parseReply turns the model's JSON reply into a DetectionSignal.
func parseReply(text, modelID string) (*model.DetectionSignal, error) {
	text = stripCodeFence(text)

	var reply struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return nil, eris.Wrap(err, "detect: parse reply")
	}
	if len(reply.Scores) == 0 {
		return nil, eris.New("detect: reply carries no scores")
	}

	aiScore, realScore := 0.0, 0.0
	for label, score := range reply.Scores {
		lower := strings.ToLower(label)
		switch {
		case containsAny(lower, aiLabelKeys):
			aiScore += score
		case containsAny(lower, realLabelKeys):
			realScore += score
		}
	}

	isAI := aiScore > realScore
	confidence := realScore
	if isAI {
		confidence = aiScore
	}
	confidence = math.Round(math.Min(math.Max(confidence, 0), 1)*10000) / 10000

	return &model.DetectionSignal{
		ModelID:        modelID,
		IsAIGenerated:  isAI,
		Confidence:     confidence,
		RawLabelScores: reply.Scores,
	}, nil
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
