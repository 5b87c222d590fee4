package manipulate

import (
	"context"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/rendis/scenario/pkg/schema"
)

type stringFunc func(s string, args []any) (any, error)

var stringOps = map[string]operation{
	"upper":       unary(strings.ToUpper),
	"lower":       unary(strings.ToLower),
	"title":       unary(titleCase),
	"capitalize":  unary(capitalize),
	"strip":       onString(trimWith(strings.Trim, strings.TrimSpace)),
	"lstrip":      onString(trimWith(strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) })),
	"rstrip":      onString(trimWith(strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) })),
	"replace":     onString(replace),
	"split":       onString(split),
	"startswith":  onString(affix(strings.HasPrefix)),
	"endswith":    onString(affix(strings.HasSuffix)),
	"find":        onString(find),
	"count":       onString(count),
	"zfill":       onString(zfill),
	"length":      onString(func(s string, _ []any) (any, error) { return len([]rune(s)), nil }),
	"concatenate": concatenate,
}

// singleString unwraps the input to exactly one scalar string. Singleton
// lists, including nested ones, are unwrapped.
func singleString(action string, p params) (string, error) {
	raw, ok := p.values()
	if !ok {
		return "", invalid(schema.TypeString, action, "values is required")
	}
	for {
		list, ok := raw.([]any)
		if !ok {
			break
		}
		if len(list) != 1 {
			return "", invalid(schema.TypeString, action, "exactly one string value is required, got %d", len(list))
		}
		raw = list[0]
	}
	s, err := toText(raw)
	if err != nil {
		return "", invalid(schema.TypeString, action, "%v", err)
	}
	return s, nil
}

func onString(fn stringFunc) operation {
	return func(_ context.Context, _ *Engine, action string, p params) (any, error) {
		s, err := singleString(action, p)
		if err != nil {
			return nil, err
		}
		out, err := fn(s, p.args())
		if err != nil {
			return nil, invalid(schema.TypeString, action, "%v", err)
		}
		return out, nil
	}
}

func unary(fn func(string) string) operation {
	return onString(func(s string, _ []any) (any, error) { return fn(s), nil })
}

func textArg(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "argument %d (%s) is required", i+1, name)
	}
	return toText(args[i])
}

func intArg(args []any, i int, defaultVal int) (int, error) {
	if i >= len(args) || args[i] == nil {
		return defaultVal, nil
	}
	return toInt(args[i])
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

// trimWith strips the cutset given as first argument, or whitespace.
func trimWith(withSet func(string, string) string, space func(string) string) stringFunc {
	return func(s string, args []any) (any, error) {
		if len(args) == 0 || args[0] == nil {
			return space(s), nil
		}
		set, err := toText(args[0])
		if err != nil {
			return nil, err
		}
		return withSet(s, set), nil
	}
}

// replace takes old, new and an optional count (negative means all).
func replace(s string, args []any) (any, error) {
	old, err := textArg(args, 0, "old")
	if err != nil {
		return nil, err
	}
	repl, err := textArg(args, 1, "new")
	if err != nil {
		return nil, err
	}
	n, err := intArg(args, 2, -1)
	if err != nil {
		return nil, err
	}
	return strings.Replace(s, old, repl, n), nil
}

// split takes an optional separator (default whitespace) and maxsplit.
func split(s string, args []any) (any, error) {
	var sep string
	if len(args) > 0 && args[0] != nil {
		var err error
		if sep, err = toText(args[0]); err != nil {
			return nil, err
		}
	}
	maxSplit, err := intArg(args, 1, -1)
	if err != nil {
		return nil, err
	}

	var parts []string
	switch {
	case sep == "" && maxSplit < 0:
		parts = strings.Fields(s)
	case sep == "":
		parts = splitFieldsN(s, maxSplit)
	case maxSplit < 0:
		parts = strings.Split(s, sep)
	default:
		parts = strings.SplitN(s, sep, maxSplit+1)
	}
	return lo.ToAnySlice(parts), nil
}

func splitFieldsN(s string, maxSplit int) []string {
	var out []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for len(out) < maxSplit && rest != "" {
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx < 0 {
			break
		}
		out = append(out, rest[:idx])
		rest = strings.TrimLeftFunc(rest[idx:], unicode.IsSpace)
	}
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

func affix(fn func(string, string) bool) stringFunc {
	return func(s string, args []any) (any, error) {
		x, err := textArg(args, 0, "affix")
		if err != nil {
			return nil, err
		}
		return fn(s, x), nil
	}
}

// find returns the rune index of the first occurrence, or -1.
func find(s string, args []any) (any, error) {
	sub, err := textArg(args, 0, "sub")
	if err != nil {
		return nil, err
	}
	idx := strings.Index(s, sub)
	if idx < 0 {
		return -1, nil
	}
	return len([]rune(s[:idx])), nil
}

func count(s string, args []any) (any, error) {
	sub, err := textArg(args, 0, "sub")
	if err != nil {
		return nil, err
	}
	if sub == "" {
		return len([]rune(s)) + 1, nil
	}
	return strings.Count(s, sub), nil
}

// zfill pads with zeros after any leading sign.
func zfill(s string, args []any) (any, error) {
	width, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	if len(runes) >= width {
		return s, nil
	}
	pad := strings.Repeat("0", width-len(runes))
	if len(runes) > 0 && (runes[0] == '-' || runes[0] == '+') {
		return string(runes[0]) + pad + string(runes[1:]), nil
	}
	return pad + s, nil
}

// concatenate joins every value with the optional "separator" param.
func concatenate(_ context.Context, _ *Engine, action string, p params) (any, error) {
	raw, ok := p.values()
	if !ok {
		return nil, invalid(schema.TypeString, action, "values is required")
	}
	list, ok := raw.([]any)
	if !ok {
		list = []any{raw}
	}
	parts := make([]string, 0, len(list))
	for _, v := range list {
		s, err := toText(v)
		if err != nil {
			return nil, invalid(schema.TypeString, action, "%v", err)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, p.string("separator", "")), nil
}
