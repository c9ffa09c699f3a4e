package summary

import (
	"fmt"
	"strings"

	wfmodel "newsbrief-ai-api/internal/workflow/model"
)

// ValidateSummaryPlan 校验模型输出的结构化摘要
// 引用序号必须落在 [1, articleCount] 内，越界即整体判为格式错误
func ValidateSummaryPlan(plan *wfmodel.SummaryPlan, articleCount int) error {
	if plan == nil {
		return fmt.Errorf("summary plan is nil")
	}
	if strings.TrimSpace(plan.Title) == "" {
		return fmt.Errorf("summary title is empty")
	}
	if strings.TrimSpace(plan.Summary) == "" {
		return fmt.Errorf("summary body is empty")
	}
	if len(plan.TLDR) == 0 {
		return fmt.Errorf("summary tldr is empty")
	}
	for i, bullet := range plan.TLDR {
		if strings.TrimSpace(bullet) == "" {
			return fmt.Errorf("tldr bullet %d is empty", i+1)
		}
	}

	if len(plan.Refs) == 0 {
		return fmt.Errorf("summary refs are empty")
	}
	for i, ref := range plan.Refs {
		if strings.TrimSpace(ref.Sentence) == "" {
			return fmt.Errorf("ref %d sentence is empty", i+1)
		}
		if len(ref.Sources) == 0 {
			return fmt.Errorf("ref %d has no sources", i+1)
		}
		for _, src := range ref.Sources {
			if src < 1 || src > articleCount {
				return fmt.Errorf("ref %d cites article %d out of range [1, %d]", i+1, src, articleCount)
			}
		}
	}
	return nil
}
