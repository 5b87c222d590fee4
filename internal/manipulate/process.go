package manipulate

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/rendis/scenario/pkg/schema"
)

var siblingStep = regexp.MustCompile(`^s([1-9][0-9]*)$`)

// ParseProcess builds a definition from a stored process document. The
// document is either one step ({type, action, params, output_key}) or a set
// of sibling steps s1..sN with a top-level output_key. Sibling steps keep
// only the output_key they declare; one of them must write the process key.
func ParseProcess(name string, contents map[string]any) (*schema.ProcessDefinition, error) {
	def := &schema.ProcessDefinition{Name: name}
	if key, ok := contents["output_key"].(string); ok {
		def.OutputKey = key
	}

	if _, single := contents["type"]; single {
		step, err := decodeStep(name, "", contents)
		if err != nil {
			return nil, err
		}
		def.Steps = []schema.ProcessStep{step}
		if def.OutputKey == "" {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "process %q declares no output_key", name)
		}
		return def, nil
	}

	type numbered struct {
		n   int
		key string
	}
	var keys []numbered
	for key := range contents {
		m := siblingStep.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		keys = append(keys, numbered{n: n, key: key})
	}
	if len(keys) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "process %q has no steps", name)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].n < keys[j].n })

	for _, k := range keys {
		raw, ok := contents[k.key].(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "process %q step %s must be a mapping", name, k.key)
		}
		step, err := decodeStep(name, k.key, raw)
		if err != nil {
			return nil, err
		}
		def.Steps = append(def.Steps, step)
	}

	if def.OutputKey == "" {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "process %q declares no output_key", name)
	}
	return def, nil
}

func decodeStep(process, key string, raw map[string]any) (schema.ProcessStep, error) {
	var step schema.ProcessStep
	where := process
	if key != "" {
		where += "." + key
	}
	if err := mapstructure.Decode(raw, &step); err != nil {
		return step, schema.NewErrorf(schema.ErrCodeConfig, "process %s: %v", where, err).WithCause(err)
	}
	if step.Type == "" || step.Action == "" {
		return step, schema.NewErrorf(schema.ErrCodeConfig, "process %s: type and action are required", where)
	}
	if step.Params == nil {
		return step, schema.NewErrorf(schema.ErrCodeConfig, "process %s: params mapping is required", where)
	}
	return step, nil
}
