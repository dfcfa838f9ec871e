// Package tools provides the schema-validated tool registry and the
// concurrent tool-call executor used by agents during a conversation turn.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maestrokit/maestro/types"
)

// Func defines the tool function signature.
type Func func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Metadata describes tool metadata.
type Metadata struct {
	Schema      types.ToolSchema  // Tool JSON Schema
	ParamSchema *types.JSONSchema // Parsed parameter schema, used for validation
	RateLimit   *RateLimitConfig  // Rate limit config (optional)
	Timeout     time.Duration     // Execution timeout (default 30s)
}

// RateLimitConfig defines rate limit configuration for a single tool.
type RateLimitConfig struct {
	MaxCalls int           // Maximum calls per window
	Window   time.Duration // Time window
}

// Registry is a thread-safe, schema-validated catalog of named tools.
// It is populated once at startup and safe for concurrent reads afterwards.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Func
	metadata map[string]Metadata
	limiters map[string]*rate.Limiter
	logger   *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:    make(map[string]Func),
		metadata: make(map[string]Metadata),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool to the registry under the given name.
func (r *Registry) Register(name string, fn Func, metadata Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}

	// Parse the parameter schema once at registration time.
	if metadata.ParamSchema == nil && len(metadata.Schema.Parameters) > 0 {
		parsed, err := types.FromJSON(metadata.Schema.Parameters)
		if err != nil {
			return fmt.Errorf("tool %s has invalid parameter schema: %w", name, err)
		}
		metadata.ParamSchema = parsed
	}

	if metadata.Timeout == 0 {
		metadata.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.metadata[name] = metadata

	if metadata.RateLimit != nil && metadata.RateLimit.MaxCalls > 0 {
		interval := metadata.RateLimit.Window / time.Duration(metadata.RateLimit.MaxCalls)
		r.limiters[name] = rate.NewLimiter(rate.Every(interval), metadata.RateLimit.MaxCalls)
	}

	r.logger.Info("tool registered", zap.String("name", name), zap.Duration("timeout", metadata.Timeout))
	return nil
}

// Unregister removes a tool from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool %s not found", name)
	}
	delete(r.tools, name)
	delete(r.metadata, name)
	delete(r.limiters, name)
	return nil
}

// Get retrieves a tool function and its metadata by name.
func (r *Registry) Get(name string) (Func, Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, Metadata{}, types.NewError(types.ErrToolNotFound, fmt.Sprintf("tool %s not found", name))
	}
	return fn, r.metadata[name], nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns the schemas of all registered tools.
func (r *Registry) List() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]types.ToolSchema, 0, len(r.metadata))
	for _, meta := range r.metadata {
		schemas = append(schemas, meta.Schema)
	}
	return schemas
}

// Execute looks up a tool, validates params against its schema, and runs it.
// Validation failures surface as a TOOL_VALIDATION error; they never panic.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (json.RawMessage, error) {
	fn, meta, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	if meta.ParamSchema != nil {
		// Round-trip through JSON so numbers land as float64, matching
		// what the schema validator expects for decoded values.
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, types.NewError(types.ErrToolValidation, "params not serializable").WithCause(err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, types.NewError(types.ErrToolValidation, "params not decodable").WithCause(err)
		}
		if err := meta.ParamSchema.Validate(decoded); err != nil {
			return nil, types.NewError(types.ErrToolValidation, fmt.Sprintf("tool %s: %v", name, err))
		}
	}

	if err := r.allow(name); err != nil {
		return nil, err
	}

	args, err := json.Marshal(params)
	if err != nil {
		return nil, types.NewError(types.ErrToolValidation, "params not serializable").WithCause(err)
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()
	return fn(execCtx, args)
}

func (r *Registry) allow(name string) error {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if !limiter.Allow() {
		return types.NewError(types.ErrRateLimited, fmt.Sprintf("tool %s rate limit exceeded", name)).WithRetryable(true)
	}
	return nil
}
