package llm

import (
	"fmt"
	"sort"

	"github.com/crickql/crickql/internal/config"
)

// Registry holds one client per allow-listed model. The route table in
// config is the allow-list: a model without a route does not exist as far
// as the pipeline is concerned.
type Registry struct {
	clients map[string]Client
}

func NewRegistry(cfg config.AIConfig) (*Registry, error) {
	routes, err := cfg.ModelRoutes()
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no model routes configured")
	}

	clients := make(map[string]Client, len(routes))
	for model, providerName := range routes {
		provider, ok := cfg.Provider(providerName)
		if !ok {
			return nil, fmt.Errorf("model %q routes to unknown provider %q", model, providerName)
		}
		client, err := NewOpenAIClient(OpenAIConfig{
			BaseURL:     provider.BaseURL,
			APIKey:      provider.APIKey,
			Model:       model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("build client for model %q: %w", model, err)
		}
		clients[model] = client
	}
	return &Registry{clients: clients}, nil
}

func (r *Registry) Client(model string) (Client, bool) {
	client, ok := r.clients[model]
	return client, ok
}

func (r *Registry) Models() []string {
	models := make([]string, 0, len(r.clients))
	for model := range r.clients {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}
