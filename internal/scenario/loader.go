// Package scenario materializes stored step documents into ordered, immutable
// scenarios and imports scenario files into the document store.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

var trailingDigits = regexp.MustCompile(`([0-9]+)$`)

// rawStep is the stored shape of a step document.
type rawStep struct {
	Actor      string `mapstructure:"actor"`
	Action     string `mapstructure:"action"`
	Kwargs     any    `mapstructure:"kwargs"`
	OutputName string `mapstructure:"output_name"`
	Step       any    `mapstructure:"step"`
	StepNumber any    `mapstructure:"step_number"`
}

// Loader reads scenarios from a document store. Each scenario is one
// collection whose documents are its steps.
type Loader struct {
	store     store.DocumentStore
	validator *validation.DocumentValidator
	logger    *slog.Logger
}

// NewLoader creates a Loader. validator may be nil to skip schema checks.
func NewLoader(st store.DocumentStore, validator *validation.DocumentValidator, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: st, validator: validator, logger: logger}
}

// Load fetches and orders the steps of a scenario. An empty collection is
// NOT_FOUND; any malformed step document is a CONFIG_ERROR.
func (l *Loader) Load(ctx context.Context, name string) (*schema.Scenario, error) {
	docs, err := l.store.Query(ctx, name, nil, 0)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "scenario %q not found", name).
			WithDetails(map[string]any{"scenario": name})
	}

	steps := make([]schema.Step, 0, len(docs))
	for _, doc := range docs {
		if l.validator != nil {
			if err := l.validator.Validate(validation.KindStep, doc.Tag, doc.Contents); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeConfig, "scenario %q: %v", name, err).WithCause(err)
			}
		}
		step, err := ParseStep(doc.Tag, doc.Contents)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "scenario %q: %v", name, err).WithCause(err)
		}
		steps = append(steps, step)
	}

	Sort(steps, func(order int, ids []string) {
		l.logger.WarnContext(ctx, "duplicate step order, ordering by document tag",
			slog.String("scenario", name),
			slog.Int("order", order),
			slog.Any("documents", ids),
		)
	})
	return &schema.Scenario{Name: name, Steps: steps}, nil
}

// ParseStep converts one stored step document into a Step.
func ParseStep(tag string, contents map[string]any) (schema.Step, error) {
	var raw rawStep
	if err := mapstructure.Decode(contents, &raw); err != nil {
		return schema.Step{}, schema.NewErrorf(schema.ErrCodeConfig, "step %q: %v", tag, err).WithCause(err)
	}

	action, ok := schema.CanonicalAction(raw.Action)
	if !ok {
		return schema.Step{}, schema.NewErrorf(schema.ErrCodeConfig, "step %q: unknown action %q", tag, raw.Action).
			WithDetails(map[string]any{"document": tag, "action": raw.Action})
	}
	if raw.Actor == "" {
		return schema.Step{}, schema.NewErrorf(schema.ErrCodeConfig, "step %q: actor is required", tag)
	}

	kwargs, err := ParseKwargs(raw.Kwargs)
	if err != nil {
		return schema.Step{}, schema.NewErrorf(schema.ErrCodeConfig, "step %q: %v", tag, err).WithCause(err)
	}

	explicit := raw.Step
	if raw.StepNumber != nil {
		if raw.Step != nil {
			a, err := stepOrder(tag, raw.Step)
			if err != nil {
				return schema.Step{}, err
			}
			b, err := stepOrder(tag, raw.StepNumber)
			if err != nil {
				return schema.Step{}, err
			}
			if a != b {
				return schema.Step{}, schema.NewErrorf(schema.ErrCodeConfig,
					"step %q: step %v and step_number %v disagree", tag, raw.Step, raw.StepNumber).
					WithDetails(map[string]any{"document": tag, "step": raw.Step, "step_number": raw.StepNumber})
			}
		} else {
			explicit = raw.StepNumber
		}
	}
	order, err := stepOrder(tag, explicit)
	if err != nil {
		return schema.Step{}, err
	}

	return schema.Step{
		ID:         tag,
		Order:      order,
		Actor:      raw.Actor,
		Action:     action,
		Kwargs:     kwargs,
		OutputName: raw.OutputName,
	}, nil
}

// ParseKwargs accepts a mapping, a JSON object string or a YAML mapping
// string. Anything that does not yield a mapping is an error.
func ParseKwargs(v any) (map[string]any, error) {
	switch kw := v.(type) {
	case nil:
		return nil, fmt.Errorf("kwargs is required")
	case map[string]any:
		return kw, nil
	case string:
		text := strings.TrimSpace(kw)
		if text == "" {
			return map[string]any{}, nil
		}
		var out map[string]any
		if strings.HasPrefix(text, "{") {
			if err := json.Unmarshal([]byte(text), &out); err == nil {
				return out, nil
			}
		}
		if err := yaml.Unmarshal([]byte(text), &out); err != nil {
			return nil, fmt.Errorf("kwargs is not a mapping: %w", err)
		}
		if out == nil {
			return nil, fmt.Errorf("kwargs is not a mapping")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("kwargs must be a mapping, got %T", v)
	}
}

// stepOrder reads the explicit step key (step or step_number), falling back
// to the trailing digits of the document tag.
func stepOrder(tag string, explicit any) (int, error) {
	switch v := explicit.(type) {
	case nil:
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, nil
		}
	}
	if explicit != nil {
		return 0, schema.NewErrorf(schema.ErrCodeConfig, "step %q: invalid step order %v", tag, explicit)
	}

	m := trailingDigits.FindStringSubmatch(tag)
	if m == nil {
		return 0, schema.NewErrorf(schema.ErrCodeConfig,
			"step %q: no step order and no trailing number in the document tag", tag)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeConfig, "step %q: %v", tag, err)
	}
	return n, nil
}

// Sort orders steps by Order, breaking ties by document tag. onTie is called
// once per duplicated order with the tied tags.
func Sort(steps []schema.Step, onTie func(order int, ids []string)) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Order != steps[j].Order {
			return steps[i].Order < steps[j].Order
		}
		return steps[i].ID < steps[j].ID
	})
	if onTie == nil {
		return
	}
	for i := 0; i < len(steps); {
		j := i + 1
		for j < len(steps) && steps[j].Order == steps[i].Order {
			j++
		}
		if j-i > 1 {
			ids := make([]string, 0, j-i)
			for _, s := range steps[i:j] {
				ids = append(ids, s.ID)
			}
			onTie(steps[i].Order, ids)
		}
		i = j
	}
}
