package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/questforge/internal/apperr"
	"github.com/abhisek/questforge/internal/llm"
	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/treegen"
)

type Config struct {
	MaxTokens   int
	Temperature float64
	MaxStages   int
}

func DefaultConfig() Config {
	return Config{MaxTokens: 2048, Temperature: 0.4, MaxStages: 8}
}

// Request describes the quest to decompose.
type Request struct {
	QuestTitle   string
	Goal         string
	Level        treegen.Level
	PracticeDays int
	DailyMinutes int
	KnownTopics  []string
}

// Decomposer asks an LLM to split a goal into stages.
type Decomposer struct {
	provider llm.Provider
	cfg      Config
	log      *logging.Logger
}

func NewDecomposer(provider llm.Provider, cfg Config, logger *logging.Logger) *Decomposer {
	def := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxStages <= 0 {
		cfg.MaxStages = def.MaxStages
	}
	return &Decomposer{provider: provider, cfg: cfg, log: logging.OrNop(logger)}
}

type stagesOutput struct {
	Stages []treegen.Stage `json:"stages"`
}

// Decompose returns the usable stages of the model's reply, in order and
// capped at MaxStages. A reply with no usable stage is InvalidState.
func (d *Decomposer) Decompose(ctx context.Context, req Request) ([]treegen.Stage, error) {
	const op = "decompose stages"
	if strings.TrimSpace(req.Goal) == "" {
		return nil, apperr.InvalidState(op, "quest %q has no goal text", req.QuestTitle)
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeStageDecomposition)
	prompt := llm.UserPrompt(systemPrompt, userMessage(req, d.cfg.MaxStages), StagesSchema, d.cfg.MaxTokens)
	prompt.Temperature = d.cfg.Temperature

	resp, err := d.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out stagesOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	var stages []treegen.Stage
	for _, s := range out.Stages {
		if !s.Usable() {
			d.log.Debug("dropping stage without capability", "title", s.Title)
			continue
		}
		s.Title = strings.TrimSpace(s.Title)
		s.Topics = normalizeTopics(s.Topics)
		stages = append(stages, s)
		if len(stages) == d.cfg.MaxStages {
			break
		}
	}
	if len(stages) == 0 {
		return nil, apperr.InvalidState(op, "model returned no usable stages for %q", req.QuestTitle)
	}

	d.log.Info("quest decomposed", "quest", req.QuestTitle, "stages", len(stages),
		"model", resp.Model, "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return stages, nil
}
