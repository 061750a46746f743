package leads

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-leadboard/pkg/activity"
)

// EntityClient issues the create and delete calls of the CRUD views.
type EntityClient interface {
	Create(ctx context.Context, path string, payload any) (MutationResponse, error)
	Delete(ctx context.Context, path string) (MutationResponse, error)
}

// MutatorOptions configures NewMutator.
type MutatorOptions struct {
	Config    Config
	Client    EntityClient
	Validator PayloadValidator
	Activity  *activity.Emitter
	Hook      ChangeHook
	Logger    *slog.Logger
	Telemetry Telemetry
}

// MutationResult is the outcome of an accepted create or delete.
type MutationResult struct {
	Entity  string `json:"entity"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Mutator performs entity creates and deletes that expect a {success, message} reply.
type Mutator struct {
	entities  map[string]EntityConfig
	client    EntityClient
	validator PayloadValidator
	activity  *activity.Emitter
	hook      ChangeHook
	logger    *slog.Logger
	telemetry Telemetry
}

// NewMutator builds a mutator over the configured entities.
func NewMutator(opts MutatorOptions) (*Mutator, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("leads: mutator requires an entity client")
	}
	validator := opts.Validator
	if validator == nil {
		validator = noopPayloadValidator{}
	}
	hook := opts.Hook
	if hook == nil {
		hook = noopChangeHook{}
	}
	return &Mutator{
		entities:  opts.Config.Entities,
		client:    opts.Client,
		validator: validator,
		activity:  opts.Activity,
		hook:      hook,
		logger:    normalizeLogger(opts.Logger),
		telemetry: normalizeTelemetry(opts.Telemetry),
	}, nil
}

// Create validates payload against the entity schema and posts it. Invalid payloads never
// reach the network.
func (m *Mutator) Create(ctx context.Context, entity string, payload map[string]any) (MutationResult, error) {
	cfg, err := m.entity(entity)
	if err != nil {
		return MutationResult{}, err
	}
	if cfg.Create == "" {
		return MutationResult{}, NewValidationError(fmt.Sprintf("%s cannot be created", entity))
	}
	if err := m.validator.Validate(entity, cfg.Schema, payload); err != nil {
		return MutationResult{}, err
	}
	op := "create " + entity
	resp, err := m.client.Create(ctx, cfg.Create, payload)
	if err == nil {
		err = checkMutation(op, resp, false)
	}
	if err != nil {
		m.failed(ctx, op, entity, err)
		return MutationResult{}, err
	}
	id, _ := DefaultKey(Row(payload))
	result := MutationResult{Entity: entity, ID: id, Message: resp.Message}
	m.succeeded(ctx, "create", entity, id, map[string]any{"fields": len(payload)})
	return result, nil
}

// Delete removes one entity by id.
func (m *Mutator) Delete(ctx context.Context, entity, id string) (MutationResult, error) {
	cfg, err := m.entity(entity)
	if err != nil {
		return MutationResult{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return MutationResult{}, NewValidationError("id is required")
	}
	if cfg.Delete == "" {
		return MutationResult{}, NewValidationError(fmt.Sprintf("%s cannot be deleted", entity))
	}
	op := "delete " + entity
	resp, err := m.client.Delete(ctx, EntityPath(cfg.Delete, id))
	if err == nil {
		err = checkMutation(op, resp, false)
	}
	if err != nil {
		m.failed(ctx, op, entity, err)
		return MutationResult{}, err
	}
	m.succeeded(ctx, "delete", entity, id, nil)
	return MutationResult{Entity: entity, ID: id, Message: resp.Message}, nil
}

// EntityPath fills the {id} placeholder of tmpl, or appends the escaped id when there is none.
func EntityPath(tmpl, id string) string {
	escaped := url.PathEscape(id)
	if strings.Contains(tmpl, "{id}") {
		return strings.ReplaceAll(tmpl, "{id}", escaped)
	}
	return strings.TrimRight(tmpl, "/") + "/" + escaped
}

func (m *Mutator) entity(name string) (EntityConfig, error) {
	cfg, ok := m.entities[name]
	if !ok {
		return EntityConfig{}, NewValidationError(fmt.Sprintf("unknown entity %q", name))
	}
	return cfg, nil
}

func (m *Mutator) failed(ctx context.Context, op, entity string, err error) {
	m.logger.Warn("mutation failed", "op", op, "error", err)
	m.telemetry.Record(ctx, "leads.entity.mutate_failed", map[string]any{
		"entity": entity,
		"op":     op,
		"error":  err.Error(),
	})
}

func (m *Mutator) succeeded(ctx context.Context, action, entity, id string, metadata map[string]any) {
	m.telemetry.Record(ctx, "leads.entity."+action, map[string]any{
		"entity": entity,
		"id":     id,
	})
	if err := m.hook.StoreUpdated(ctx, StoreEvent{Store: entity, Reason: ReasonMutated, At: time.Now()}); err != nil {
		m.logger.Warn("change hook failed", "entity", entity, "error", err)
	}
	if err := m.activity.Emit(ctx, activity.Event{
		Verb:           "leads." + entity + "." + action,
		ObjectType:     entity,
		ObjectID:       id,
		DefinitionCode: entity + ":" + action,
		Metadata:       metadata,
	}); err != nil {
		m.logger.Warn("activity emit failed", "entity", entity, "error", err)
	}
}
