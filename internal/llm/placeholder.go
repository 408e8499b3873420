package llm

import (
	"context"

	"go.uber.org/zap"
)

// placeholderNotice is prepended to every stand-in response so the
// output can never be mistaken for real generated content.
const placeholderNotice = "【占位内容】此内容由本地占位生成器产生，未调用真实生成服务，仅用于开发联调。\n\n"

// Placeholder is a development stand-in used when no generator API key
// is configured. Its output is always explicitly labeled.
type Placeholder struct {
	logger *zap.Logger
}

// NewPlaceholder builds the stand-in generator.
func NewPlaceholder(logger *zap.Logger) *Placeholder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Placeholder{logger: logger}
}

// Generate echoes the prompt under an unmistakable placeholder banner.
func (p *Placeholder) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.logger.Warn("placeholder generator invoked; configure a generator api key for real output")
	return placeholderNotice + "原始提示词如下，供人工核对：\n" + prompt, nil
}
