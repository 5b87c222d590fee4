package validation

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rendis/scenario/internal/resolve"
	"github.com/rendis/scenario/pkg/schema"
)

// OperationLookup reports whether a manipulation operation exists.
type OperationLookup interface {
	Supports(typ schema.OperationType, action string) bool
}

var statusKey = regexp.MustCompile(`^step_([0-9]+)_(status|error)$`)

// requiredKwargs lists the kwargs each action cannot run without.
var requiredKwargs = map[schema.Action][]string{
	schema.ActionRead:       {"collection"},
	schema.ActionWrite:      {"collection"},
	schema.ActionUpdate:     {"collection", "document_tag", "updates"},
	schema.ActionDelete:     {"collection"},
	schema.ActionManipulate: {"process"},
	schema.ActionSend:       {"service", "endpoint"},
}

// CheckScenario performs static analysis on loaded steps: required kwargs per
// action, and $ references that no earlier step can have produced.
func CheckScenario(name string, steps []schema.Step) *schema.Report {
	report := &schema.Report{}
	produced := map[string]int{schema.InputKey: 0}

	for i, step := range steps {
		pos := i + 1
		path := fmt.Sprintf("step_%d", pos)

		for _, key := range requiredKwargs[step.Action] {
			if _, ok := step.Kwargs[key]; !ok {
				report.AddError(name, path+".kwargs."+key, schema.ErrCodeConfig,
					fmt.Sprintf("%s requires kwarg %q", step.Action, key))
			}
		}
		if step.Action == schema.ActionWrite {
			_, many := step.Kwargs["documents"]
			_, one := step.Kwargs["document"]
			if !many && !one {
				report.AddError(name, path+".kwargs", schema.ErrCodeConfig,
					"write requires kwarg \"documents\" or \"document\"")
			}
		}
		if step.Action == schema.ActionDelete {
			_, tag := step.Kwargs["document_tag"]
			_, field := step.Kwargs["field"]
			if field && !tag {
				report.AddError(name, path+".kwargs.field", schema.ErrCodeConfig,
					"delete of a field requires document_tag")
			}
		}

		for _, root := range resolve.Roots(step.Kwargs) {
			if _, ok := produced[root]; ok {
				continue
			}
			if m := statusKey.FindStringSubmatch(root); m != nil {
				if n, _ := strconv.Atoi(m[1]); n >= 1 && n < pos {
					continue
				}
			}
			report.AddError(name, path+".kwargs", schema.ErrCodeReference,
				fmt.Sprintf("reference $%s is not produced by an earlier step", root))
		}

		if step.OutputName == "" {
			continue
		}
		switch prev, dup := produced[step.OutputName]; {
		case step.OutputName == schema.InputKey || statusKey.MatchString(step.OutputName):
			report.AddWarning(name, path+".output_name", schema.ErrCodeConfig,
				fmt.Sprintf("output_name %q shadows a reserved cache key", step.OutputName))
		case dup:
			report.AddWarning(name, path+".output_name", schema.ErrCodeConfig,
				fmt.Sprintf("output_name %q overwrites the result of step_%d", step.OutputName, prev))
		}
		produced[step.OutputName] = pos
	}
	return report
}

// CheckProcess verifies every operation exists and that $ references point at
// output keys of earlier steps. lookup may be nil to skip operation checks.
func CheckProcess(def *schema.ProcessDefinition, lookup OperationLookup) *schema.Report {
	report := &schema.Report{}
	if def.OutputKey == "" {
		report.AddError(def.Name, "output_key", schema.ErrCodeConfig, "process declares no output_key")
	}

	produced := make(map[string]bool)
	for i, step := range def.Steps {
		path := fmt.Sprintf("s%d", i+1)
		if lookup != nil && !lookup.Supports(step.Type, step.Action) {
			report.AddError(def.Name, path, schema.ErrCodeUnsupported,
				fmt.Sprintf("unsupported %s action %q", step.Type, step.Action))
		}
		for _, root := range resolve.Roots(step.Params) {
			if !produced[root] {
				report.AddError(def.Name, path+".params", schema.ErrCodeReference,
					fmt.Sprintf("reference $%s is not produced by an earlier step", root))
			}
		}
		if step.OutputKey != "" {
			produced[step.OutputKey] = true
		}
	}

	if def.OutputKey != "" && !produced[def.OutputKey] {
		report.AddError(def.Name, "output_key", schema.ErrCodeConfig,
			fmt.Sprintf("no step populates output_key %q", def.OutputKey))
	}
	return report
}
