package model

// IndexedArticle 进入提示词的文章，Index 从 1 开始编号
// 模型输出的引用以该编号回指原文
type IndexedArticle struct {
	Index   int
	Source  string
	Title   string
	Content string
}

// SummaryGenerateInput 摘要生成输入
type SummaryGenerateInput struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	Articles  []IndexedArticle
	TLDRCount int

	// StrictBlock 重试时附加的更严格的格式指令，首次生成为空
	StrictBlock string
}

// SentenceRefItem 摘要句到原文编号的引用
type SentenceRefItem struct {
	Sentence string `json:"sentence"`
	Sources  []int  `json:"sources"`
}

// SummaryPlan 模型输出的结构化摘要
type SummaryPlan struct {
	Title   string            `json:"title"`
	TLDR    []string          `json:"tldr"`
	Summary string            `json:"summary"`
	Refs    []SentenceRefItem `json:"refs"`
}
