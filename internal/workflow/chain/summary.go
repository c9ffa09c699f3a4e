// Package chain 编排 LLM 生成工作流
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	wfmodel "newsbrief-ai-api/internal/workflow/model"
	wfnode "newsbrief-ai-api/internal/workflow/node"
	workflowport "newsbrief-ai-api/internal/workflow/port"
	workflowprompt "newsbrief-ai-api/internal/workflow/prompt"
	"newsbrief-ai-api/pkg/logger"
)

// SummaryChain 新闻摘要生成链：组装提示词、调用模型、透传原始输出
type SummaryChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.SummaryGenerateInput, *schema.Message]
	chainErr  error
}

func NewSummaryChain(factory workflowport.ChatModelFactory) *SummaryChain {
	return &SummaryChain{factory: factory}
}

func (c *SummaryChain) Invoke(ctx context.Context, in *wfmodel.SummaryGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type summaryChainState struct {
	In       *wfmodel.SummaryGenerateInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *SummaryChain) getChain() (compose.Runnable[*wfmodel.SummaryGenerateInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *SummaryChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.SummaryGenerateInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.SummaryGenerateInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.SummaryGenerateInput) (*summaryChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if len(in.Articles) == 0 {
				return nil, fmt.Errorf("no articles to summarize")
			}
			return &summaryChainState{In: in}, nil
		}),
		compose.WithNodeName("summary.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *summaryChainState) (*summaryChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			msgs, err := formatSummaryMessages(ctx, st.In)
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("summary.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *summaryChainState) (*summaryChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			if c.factory == nil {
				return nil, fmt.Errorf("llm factory not configured")
			}

			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildSummaryModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", strings.TrimSpace(st.In.Provider),
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildSummaryModelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("summary.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *summaryChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("summary.finalize"),
	)

	return chain.Compile(ctx)
}

var defaultPromptRegistry = workflowprompt.NewRegistry()

func formatSummaryMessages(ctx context.Context, in *wfmodel.SummaryGenerateInput) ([]*schema.Message, error) {
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptSummaryV1)
	if err != nil {
		return nil, err
	}

	tldrCount := in.TLDRCount
	if tldrCount <= 0 {
		tldrCount = 4
	}

	strictBlock := ""
	if s := strings.TrimSpace(in.StrictBlock); s != "" {
		strictBlock = "\n\n" + s
	}

	vars := map[string]any{
		"tldr_count":     tldrCount,
		"articles_block": buildArticlesBlock(in.Articles),
		"strict_block":   strictBlock,
	}
	return tpl.Format(ctx, vars)
}

// maxArticleRunes 单篇文章在提示词中的正文上限
const maxArticleRunes = 6000

// buildArticlesBlock 把编号文章拼成提示词正文
func buildArticlesBlock(articles []wfmodel.IndexedArticle) string {
	var sb strings.Builder
	for i, article := range articles {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Article %d [%s] %s\n", article.Index, article.Source, strings.TrimSpace(article.Title))
		sb.WriteString(wfnode.TruncateByRunes(strings.TrimSpace(article.Content), maxArticleRunes))
	}
	return sb.String()
}

func buildSummaryModelOptions(in *wfmodel.SummaryGenerateInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in == nil {
		return opts
	}

	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}

	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "news_summary",
					"strict": false,
					"schema": summaryJSONSchema(),
				},
			},
		}))
	}

	return opts
}

func summaryJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"title", "tldr", "summary", "refs"},
		"properties": map[string]any{
			"title":   map[string]any{"type": "string"},
			"tldr":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"summary": map[string]any{"type": "string"},
			"refs": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"sentence", "sources"},
					"properties": map[string]any{
						"sentence": map[string]any{"type": "string"},
						"sources":  map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
					},
				},
			},
		},
	}
}
