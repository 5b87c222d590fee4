package publisher

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/goccy/go-json"

	"github.com/rendis/scenario/pkg/schema"
)

// DefaultAPIKeyPlaceholder is substituted when a template names none.
const DefaultAPIKeyPlaceholder = "{{api_key}}"

// Render turns a service template and caller data into a request and its
// payload. The API key placeholder is substituted first; any remaining
// "{{ ... }}" in the url or header values is executed as a sprig template
// over {data, api_key}.
func Render(tpl schema.ServiceTemplate, data map[string]any, apiKey string) (RequestConfig, any, error) {
	if data == nil {
		data = map[string]any{}
	}
	placeholder := tpl.APIKeyPlaceholder
	if placeholder == "" {
		placeholder = DefaultAPIKeyPlaceholder
	}
	vars := map[string]any{"data": data, "api_key": apiKey}

	render := func(field, s string) (string, error) {
		s = strings.ReplaceAll(s, placeholder, apiKey)
		if !strings.Contains(s, "{{") {
			return s, nil
		}
		return execute(field, s, vars)
	}

	method := strings.ToUpper(strings.TrimSpace(tpl.Method))
	if method == "" {
		return RequestConfig{}, nil, schema.NewError(schema.ErrCodeConfig, "service template has no method")
	}
	if tpl.URL == "" {
		return RequestConfig{}, nil, schema.NewError(schema.ErrCodeConfig, "service template has no url")
	}

	url, err := render("url", tpl.URL)
	if err != nil {
		return RequestConfig{}, nil, err
	}
	req := RequestConfig{Method: method, URL: url}

	if len(tpl.Headers) > 0 {
		req.Headers = make(map[string]string, len(tpl.Headers))
		for _, name := range sortedKeys(tpl.Headers) {
			v, err := render("header "+name, tpl.Headers[name])
			if err != nil {
				return RequestConfig{}, nil, err
			}
			req.Headers[name] = v
		}
	}

	if len(tpl.QueryFields) > 0 {
		req.Query = make(map[string]string, len(tpl.QueryFields))
		for _, param := range sortedKeys(tpl.QueryFields) {
			v, err := project(data, tpl.QueryFields[param])
			if err != nil {
				return RequestConfig{}, nil, err
			}
			s, err := queryValue(v)
			if err != nil {
				return RequestConfig{}, nil, schema.NewErrorf(schema.ErrCodeValidation, "query field %q: %v", param, err)
			}
			req.Query[param] = s
		}
	}

	body, err := buildBody(method, tpl.BodyFields, data)
	if err != nil {
		return RequestConfig{}, nil, err
	}
	if tpl.Provider != "" && body != nil {
		if body, err = Reshape(tpl.Provider, body); err != nil {
			return RequestConfig{}, nil, err
		}
	}
	if body == nil {
		return req, nil, nil
	}
	return req, body, nil
}

func buildBody(method string, fields map[string]string, data map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		if method == http.MethodGet || method == http.MethodDelete || method == http.MethodHead || len(data) == 0 {
			return nil, nil
		}
		body := make(map[string]any, len(data))
		for k, v := range data {
			body[k] = v
		}
		return body, nil
	}
	body := make(map[string]any, len(fields))
	for field, key := range fields {
		v, err := project(data, key)
		if err != nil {
			return nil, err
		}
		body[field] = v
	}
	return body, nil
}

func project(data map[string]any, key string) (any, error) {
	v, ok := data[key]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "data has no field %q", key).
			WithDetails(map[string]any{"field": key})
	}
	return v, nil
}

func queryValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(t), nil
	}
}

func execute(field, text string, vars map[string]any) (string, error) {
	t, err := template.New(field).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeConfig, "service template %s: %v", field, err).WithCause(err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "service template %s: %v", field, err).WithCause(err)
	}
	return buf.String(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
