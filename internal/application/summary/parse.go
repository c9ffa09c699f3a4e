package summary

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	wfmodel "newsbrief-ai-api/internal/workflow/model"
	wfnode "newsbrief-ai-api/internal/workflow/node"
)

// ParseSummaryPlan 从模型输出中解析结构化摘要
// 先按约定格式严格解析，失败后再做一次宽松解析，兼容模型常见的字段变体
func ParseSummaryPlan(rawText string) (*wfmodel.SummaryPlan, error) {
	jsonText := wfnode.ExtractJSONObject(rawText)
	if strings.TrimSpace(jsonText) == "" {
		return nil, fmt.Errorf("empty summary output")
	}

	var plan wfmodel.SummaryPlan
	strictErr := json.Unmarshal([]byte(jsonText), &plan)
	if strictErr == nil && planLooksComplete(&plan) {
		return &plan, nil
	}

	loose, looseErr := parseLoose(jsonText)
	if looseErr != nil {
		if strictErr != nil {
			return nil, fmt.Errorf("failed to parse summary json: %w", strictErr)
		}
		return &plan, nil
	}
	if strictErr == nil && !planLooksComplete(loose) {
		return &plan, nil
	}
	return loose, nil
}

func planLooksComplete(plan *wfmodel.SummaryPlan) bool {
	return strings.TrimSpace(plan.Title) != "" &&
		strings.TrimSpace(plan.Summary) != "" &&
		len(plan.Refs) > 0
}

// intList 接受整数、数字字符串或二者的数组
type intList []int

func (l *intList) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(b, &raws); err != nil {
			return err
		}
		out := make([]int, 0, len(raws))
		for _, raw := range raws {
			n, err := coerceInt(raw)
			if err != nil {
				return err
			}
			out = append(out, n)
		}
		*l = out
		return nil
	}

	n, err := coerceInt(b)
	if err != nil {
		return err
	}
	*l = []int{n}
	return nil
}

func coerceInt(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.Atoi(strings.TrimSpace(s))
	}
	return 0, fmt.Errorf("cannot coerce %s to int", string(raw))
}

// stringList 接受字符串或字符串数组
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '[' {
		var out []string
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*l = []string{s}
	return nil
}

type looseRef struct {
	Sentence string  `json:"sentence"`
	Text     string  `json:"text"`
	Sources  intList `json:"sources"`
	Source   intList `json:"source"`
	ID       intList `json:"id"`
}

type loosePlan struct {
	Title      string     `json:"title"`
	Headline   string     `json:"headline"`
	TLDR       stringList `json:"tldr"`
	Bullets    stringList `json:"bullets"`
	Summary    string     `json:"summary"`
	Body       string     `json:"body"`
	Refs       []looseRef `json:"refs"`
	References []looseRef `json:"references"`
}

func parseLoose(jsonText string) (*wfmodel.SummaryPlan, error) {
	var loose loosePlan
	if err := json.Unmarshal([]byte(jsonText), &loose); err != nil {
		return nil, err
	}

	plan := &wfmodel.SummaryPlan{
		Title:   firstNonEmpty(loose.Title, loose.Headline),
		Summary: firstNonEmpty(loose.Summary, loose.Body),
	}
	plan.TLDR = loose.TLDR
	if len(plan.TLDR) == 0 {
		plan.TLDR = loose.Bullets
	}

	refs := loose.Refs
	if len(refs) == 0 {
		refs = loose.References
	}
	plan.Refs = make([]wfmodel.SentenceRefItem, 0, len(refs))
	for _, ref := range refs {
		sources := []int(ref.Sources)
		if len(sources) == 0 {
			sources = ref.Source
		}
		if len(sources) == 0 {
			sources = ref.ID
		}
		plan.Refs = append(plan.Refs, wfmodel.SentenceRefItem{
			Sentence: firstNonEmpty(ref.Sentence, ref.Text),
			Sources:  sources,
		})
	}
	return plan, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
