package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// DefaultBedrockRegion is used when neither config nor environment set one.
const DefaultBedrockRegion = "us-east-1"

// bedrockConverser is the subset of the Bedrock runtime client in use.
type bedrockConverser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements Provider for the AWS Bedrock Converse API.
type BedrockProvider struct {
	client bedrockConverser
	model  string
}

// NewBedrockProvider loads AWS configuration and creates a Bedrock provider.
// Static credentials are used when both key fields are set; otherwise the
// default AWS credential chain applies.
func NewBedrockProvider(cfg ProviderConfig) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultBedrockRegion
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(cfg.MaxRetries + 1),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel("bedrock")
	}

	return &BedrockProvider{
		client: bedrockruntime.NewFromConfig(awsCfg),
		model:  model,
	}, nil
}

// Execute sends a Converse request to Bedrock.
func (p *BedrockProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.model),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokensOrDefault(req.MaxTokens))),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: msg.Content})
		case RoleUser:
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Content}},
			})
		case RoleAssistant:
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Content}},
			})
		}
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock API error: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock: unexpected output type %T", out.Output)
	}

	var content strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			content.WriteString(text.Value)
		}
	}

	resp := &Response{
		Content:      content.String(),
		FinishReason: string(out.StopReason),
		Model:        p.model,
		Duration:     time.Since(start),
	}
	if out.Usage != nil {
		resp.Usage = Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}
	return resp, nil
}

// Name returns the provider identifier.
func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// Model returns the configured model name.
func (p *BedrockProvider) Model() string {
	return p.model
}

var _ Provider = (*BedrockProvider)(nil)
