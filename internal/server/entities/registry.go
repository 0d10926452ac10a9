package entities

import (
	"fmt"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

// MapRegistry is a static Registry backed by a map, populated at wiring time.
type MapRegistry struct {
	services map[models.TargetType]Service
}

// NewMapRegistry builds a Registry from the given type-to-service map.
func NewMapRegistry(services map[models.TargetType]Service) *MapRegistry {
	return &MapRegistry{services: services}
}

func (r *MapRegistry) For(t models.TargetType) (Service, error) {
	s, ok := r.services[t]
	if !ok {
		return nil, fmt.Errorf("%w: no entity service for type %q", common.ErrValidation, t)
	}
	return s, nil
}
