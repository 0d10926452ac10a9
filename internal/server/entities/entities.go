// Package entities declares the collaborator interfaces through which the
// core reaches the business-entity services (cabinets, drawers, folders,
// files). Their CRUD implementations live outside the core.
package entities

import (
	"context"

	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

// Descriptor is a snapshot of one entity: its metadata, its content (files
// carry their already-encrypted payload bytes) and the ids of its children.
type Descriptor struct {
	ID       string            `json:"id"`
	Type     models.TargetType `json:"type"`
	TenantID string            `json:"tenant_id"`
	Name     string            `json:"name"`
	ParentID string            `json:"parent_id,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
	// Content holds the encrypted payload bytes for file entities; empty for
	// containers.
	Content []byte `json:"-"`
	// Children lists direct descendants, in order, for container entities.
	Children []ChildRef `json:"children,omitempty"`
}

// ChildRef points at a direct descendant.
type ChildRef struct {
	ID   string            `json:"id"`
	Type models.TargetType `json:"type"`
}

// Service is implemented by each entity collaborator. The core only reads
// snapshots and asks for entities to be (re)created; it never touches the
// relational business schema directly.
type Service interface {
	// GetDescriptor returns the snapshot of an entity, or common.ErrNotFound.
	GetDescriptor(ctx context.Context, id string) (*Descriptor, error)

	// Exists reports whether the entity still exists.
	Exists(ctx context.Context, id string) (bool, error)

	// CreateFromRestore creates a brand-new entity from restored metadata and
	// content, attached under parentID, and returns the new entity id.
	CreateFromRestore(ctx context.Context, d *Descriptor, content []byte, parentID string) (string, error)

	// CreateNewVersionOf attaches restored content to an existing entity as a
	// new version (never overwriting in place) and returns the version id.
	CreateNewVersionOf(ctx context.Context, entityID string, d *Descriptor, content []byte) (string, error)
}

// Registry resolves the collaborator responsible for a target type.
type Registry interface {
	// For returns the Service for t, or common.ErrValidation when no
	// collaborator handles t.
	For(t models.TargetType) (Service, error)
}
