package actions

import (
	"context"
	"log/slog"

	"github.com/mitchellh/mapstructure"

	"github.com/rendis/scenario/internal/expressions"
	"github.com/rendis/scenario/internal/publisher"
	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

// Publisher is the outbound HTTP collaborator.
type Publisher interface {
	Publish(ctx context.Context, req publisher.RequestConfig, payload any, apiKey string) (*publisher.Response, error)
}

// SecretResolver supplies a service's API key when the step names none.
type SecretResolver interface {
	Resolve(ctx context.Context, key string) ([]byte, error)
}

type sendHandler struct {
	store      store.DocumentStore
	validator  *validation.DocumentValidator
	publisher  Publisher
	secrets    SecretResolver
	jq         *expressions.GoJQEngine
	collection string
	logger     *slog.Logger
}

func (h *sendHandler) Name() schema.Action { return schema.ActionSend }

func (h *sendHandler) Info() HandlerInfo {
	return HandlerInfo{
		Name:        schema.ActionSend,
		Description: "Render a stored service endpoint template and publish data through it",
		Required:    []string{"service", "endpoint"},
		Optional:    []string{"data", "api_key"},
	}
}

func (h *sendHandler) Validate(kw map[string]any) error {
	return requireKeys(schema.ActionSend, kw, "service", "endpoint")
}

// Execute returns the parsed response body, passed through the template's
// response_filter when it has one.
func (h *sendHandler) Execute(ctx context.Context, _ schema.Step, kw map[string]any) (any, error) {
	k := kwargs(kw)
	service, err := k.requireString(schema.ActionSend, "service")
	if err != nil {
		return nil, err
	}
	endpoint, err := k.requireString(schema.ActionSend, "endpoint")
	if err != nil {
		return nil, err
	}
	apiKey, err := k.optionalString(schema.ActionSend, "api_key")
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		if apiKey, err = h.storedKey(ctx, service); err != nil {
			return nil, err
		}
	}
	data := map[string]any{}
	if k.has("data") {
		if data, err = k.mapping(schema.ActionSend, "data"); err != nil {
			return nil, err
		}
	}

	tpl, err := h.template(ctx, service, endpoint)
	if err != nil {
		return nil, err
	}
	req, payload, err := publisher.Render(tpl, data, apiKey)
	if err != nil {
		return nil, err
	}

	resp, err := h.publisher.Publish(ctx, req, payload, apiKey)
	if err != nil {
		return nil, err
	}
	h.logger.DebugContext(ctx, "service replied",
		slog.String("service", service),
		slog.String("endpoint", endpoint),
		slog.Int("status_code", resp.StatusCode),
	)

	if tpl.ResponseFilter == "" {
		return resp.Body, nil
	}
	out, err := h.jq.Query(ctx, tpl.ResponseFilter, resp.Body)
	if err != nil {
		return nil, schema.NewErrorf(schema.CodeOf(err), "service %q endpoint %q response_filter: %v", service, endpoint, err).
			WithCause(err)
	}
	return out, nil
}

func (h *sendHandler) template(ctx context.Context, service, endpoint string) (schema.ServiceTemplate, error) {
	doc, err := loadDefinition(ctx, h.store, h.collection, "service", service)
	if err != nil {
		return schema.ServiceTemplate{}, err
	}
	if h.validator != nil {
		if err := h.validator.Validate(validation.KindService, service, doc.Contents); err != nil {
			return schema.ServiceTemplate{}, err
		}
	}

	endpoints, _ := doc.Contents["endpoints"].(map[string]any)
	raw, ok := endpoints[endpoint]
	if !ok {
		return schema.ServiceTemplate{}, schema.NewErrorf(schema.ErrCodeConfig, "service %q has no endpoint %q", service, endpoint).
			WithDetails(map[string]any{"service": service, "endpoint": endpoint})
	}

	var tpl schema.ServiceTemplate
	if err := mapstructure.Decode(raw, &tpl); err != nil {
		return schema.ServiceTemplate{}, schema.NewErrorf(schema.ErrCodeConfig, "service %q endpoint %q: %v", service, endpoint, err).
			WithCause(err)
	}
	return tpl, nil
}

// storedKey looks the service's API key up in the vault. A service without a
// stored key is sent unauthenticated.
func (h *sendHandler) storedKey(ctx context.Context, service string) (string, error) {
	if h.secrets == nil {
		return "", nil
	}
	key, err := h.secrets.Resolve(ctx, service)
	switch {
	case err == nil:
		return string(key), nil
	case schema.IsCode(err, schema.ErrCodeNotFound):
		return "", nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeConfig, "service %q api key: %v", service, err).WithCause(err)
	}
}
