package actors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/boristopalov/trainloop/pkg/agent"
	"github.com/boristopalov/trainloop/pkg/core"
	"github.com/boristopalov/trainloop/pkg/providers"
)

const (
	DefaultModel = "gpt-4o-mini"

	PROMPT_TEMPLATE = `You are controlling an agent in an environment. Each turn you see an observation and must choose an action of %d number(s).
%s
%s
The current observation is: %s

Very briefly think step by step about which action maximizes your reward and then provide your answer. Your answer should follow the string "ACTION" like so: ACTION: <comma separated numbers>`

	RETRY_PROMPT_TEMPLATE = `Your previous response did not include the required format. Here was your response:

%s

Please answer with exactly %d comma separated number(s) following "ACTION:". For example: ACTION: %s`
)

var actionPattern = regexp.MustCompile(`ACTION:\s*(-?\d*\.?\d+(?:\s*,\s*-?\d*\.?\d+)*)`)

// LLM asks a language model for actions. As an agent callback it also keeps
// a short history of recent steps and their rewards, which is included in
// every prompt.
type LLM struct {
	agent.Base

	client   providers.Client
	model    string
	spec     core.BoundedSpec
	capacity int
	history  []string
	pending  string
	logger   *slog.Logger
}

type LLMParams struct {
	Model   string
	History int
	Logger  *slog.Logger
}

type LLMOption func(*LLMParams)

func WithModel(model string) LLMOption {
	return func(p *LLMParams) {
		p.Model = model
	}
}

// WithHistory sets how many past steps are kept in the prompt.
func WithHistory(n int) LLMOption {
	return func(p *LLMParams) {
		p.History = n
	}
}

func WithLogger(logger *slog.Logger) LLMOption {
	return func(p *LLMParams) {
		p.Logger = logger
	}
}

func NewLLM(client providers.Client, spec core.BoundedSpec, opts ...LLMOption) (*LLM, error) {
	if client == nil {
		return nil, errors.New("llm actor requires a client")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	params := &LLMParams{Model: DefaultModel, History: 10, Logger: slog.Default()}
	for _, opt := range opts {
		opt(params)
	}
	return &LLM{
		client:   client,
		model:    params.Model,
		spec:     spec,
		capacity: params.History,
		logger:   params.Logger,
	}, nil
}

// OnBind implements agent.BindHook.
func (l *LLM) OnBind(owner *agent.Agent) error {
	l.logger = owner.Logger().With("actor", "llm", "model", l.model)
	return nil
}

func (l *LLM) ActionSpec() core.BoundedSpec {
	return l.spec
}

func (l *LLM) SelectAction(ctx context.Context, obs core.Observation) (core.Action, error) {
	prompt := fmt.Sprintf(PROMPT_TEMPLATE, l.spec.Dims(), l.describeBounds(), l.describeHistory(), formatVector(obs))
	response, err := l.client.Complete(ctx, l.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to select action: %w", err)
	}

	action, err := parseAction(response, l.spec.Dims())
	if err != nil {
		l.logger.Debug("unparseable response, retrying", "error", err)
		example := formatValues(l.spec.Minimum)
		response, err = l.client.Complete(ctx, l.model, fmt.Sprintf(RETRY_PROMPT_TEMPLATE, response, l.spec.Dims(), example))
		if err != nil {
			return nil, fmt.Errorf("failed to select action on retry: %w", err)
		}
		action, err = parseAction(response, l.spec.Dims())
		if err != nil {
			return nil, fmt.Errorf("no action found in response even after retry: %w", err)
		}
	}

	l.pending = fmt.Sprintf("observation %s -> action %s", formatVector(obs), formatVector(action))
	return l.spec.Clip(action)
}

// OnFeedback records the reward for the last selected action.
func (l *LLM) OnFeedback(_ context.Context, _ core.Action, next core.TimeStep) error {
	if l.pending == "" || l.capacity <= 0 {
		return nil
	}
	l.history = append(l.history, fmt.Sprintf("%s -> reward %g", l.pending, next.Reward))
	if len(l.history) > l.capacity {
		l.history = l.history[1:]
	}
	l.pending = ""
	return nil
}

// History returns a copy of the remembered steps, oldest first.
func (l *LLM) History() []string {
	return append([]string(nil), l.history...)
}

func (l *LLM) describeBounds() string {
	parts := make([]string, l.spec.Dims())
	for i := range parts {
		parts[i] = fmt.Sprintf("action[%d] in [%g, %g]", i, l.spec.Minimum[i], l.spec.Maximum[i])
	}
	return "Bounds: " + strings.Join(parts, "; ")
}

func (l *LLM) describeHistory() string {
	if len(l.history) == 0 {
		return "There is no history yet."
	}
	return "Recent history:\n" + strings.Join(l.history, "\n")
}

// parseAction extracts "ACTION: a, b, ..." from a response.
func parseAction(response string, dims int) (core.Action, error) {
	matches := actionPattern.FindStringSubmatch(response)
	if len(matches) < 2 {
		return nil, fmt.Errorf("could not find action in response: %s", response)
	}

	fields := strings.Split(matches[1], ",")
	if len(fields) != dims {
		return nil, fmt.Errorf("expected %d action values, got %d", dims, len(fields))
	}
	action := make(core.Action, dims)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("could not parse action value: %w", err)
		}
		action[i] = v
	}
	return action, nil
}

func formatValues[T ~[]float64](v T) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}

func formatVector[T ~[]float64](v T) string {
	return "[" + formatValues(v) + "]"
}
