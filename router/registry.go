// Package router provides advisory model routing: it profiles a natural
// language task and scores a static model-capability registry to recommend a
// provider and model. Routing happens before a call; failover during a call
// belongs to the llm fallback chain.
package router

// Category classifies the kind of work a task asks for.
type Category string

const (
	CategoryCode            Category = "code"
	CategoryDataAnalysis    Category = "data_analysis"
	CategoryCreativeWriting Category = "creative_writing"
	CategoryResearch        Category = "research"
	CategoryMath            Category = "math"
	CategorySummarization   Category = "summarization"
	CategoryClassification  Category = "classification"
	CategoryConversational  Category = "conversational"
)

// ModelCapability describes one routable model. Quality and Speed are 1-10;
// Cost is a 0-10 relative scale where 0 is free.
type ModelCapability struct {
	Provider          string     `yaml:"provider" json:"provider"`
	Model             string     `yaml:"model" json:"model"`
	Strengths         []Category `yaml:"strengths" json:"strengths"`
	Quality           int        `yaml:"quality" json:"quality"`
	Speed             int        `yaml:"speed" json:"speed"`
	Cost              float64    `yaml:"cost" json:"cost"`
	ContextWindow     int        `yaml:"context_window" json:"context_window"`
	SupportsVision    bool       `yaml:"supports_vision" json:"supports_vision"`
	SupportsFunctions bool       `yaml:"supports_functions" json:"supports_functions"`
	Local             bool       `yaml:"local" json:"local"`
}

func (m ModelCapability) hasStrength(c Category) bool {
	for _, s := range m.Strengths {
		if s == c {
			return true
		}
	}
	return false
}

// DefaultModelRegistry returns the built-in capability table. Hosts inject
// their own registry through NewRouter when their model mix differs; there
// is no package-level mutable state.
func DefaultModelRegistry() []ModelCapability {
	return []ModelCapability{
		{
			Provider: "openai", Model: "gpt-4o",
			Strengths: []Category{CategoryCode, CategoryResearch, CategoryDataAnalysis},
			Quality:   9, Speed: 7, Cost: 6, ContextWindow: 128_000,
			SupportsVision: true, SupportsFunctions: true,
		},
		{
			Provider: "openai", Model: "gpt-4o-mini",
			Strengths: []Category{CategoryConversational, CategoryClassification, CategorySummarization},
			Quality:   7, Speed: 9, Cost: 2, ContextWindow: 128_000,
			SupportsVision: true, SupportsFunctions: true,
		},
		{
			Provider: "anthropic", Model: "claude-sonnet-4",
			Strengths: []Category{CategoryCode, CategoryCreativeWriting, CategoryResearch},
			Quality:   9, Speed: 7, Cost: 5, ContextWindow: 200_000,
			SupportsVision: true, SupportsFunctions: true,
		},
		{
			Provider: "deepseek", Model: "deepseek-chat",
			Strengths: []Category{CategoryCode, CategoryMath},
			Quality:   8, Speed: 6, Cost: 1, ContextWindow: 64_000,
			SupportsFunctions: true,
		},
		{
			Provider: "ollama", Model: "llama3.2",
			Strengths: []Category{CategoryConversational, CategorySummarization},
			Quality:   5, Speed: 8, Cost: 0, ContextWindow: 8_000,
			Local: true,
		},
		{
			Provider: "ollama", Model: "qwen2.5-coder",
			Strengths: []Category{CategoryCode},
			Quality:   6, Speed: 7, Cost: 0, ContextWindow: 32_000,
			Local: true,
		},
		{
			Provider: "huggingface", Model: "mistralai/Mistral-7B-Instruct-v0.3",
			Strengths: []Category{CategoryConversational, CategoryClassification},
			Quality:   4, Speed: 5, Cost: 0, ContextWindow: 8_000,
		},
	}
}
