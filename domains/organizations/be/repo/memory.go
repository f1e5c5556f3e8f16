package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-orgs/domains/organizations/be/service"
)

// MemoryRepository is an in-memory registry for tests. The canonical-name index is checked and written under one
// lock, which gives it the same arbitration as the unique constraint.
type MemoryRepository struct {
	mu          sync.RWMutex
	byID        map[uuid.UUID]service.Organization
	byCanonical map[string]uuid.UUID
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]service.Organization), byCanonical: make(map[string]uuid.UUID)}
}

var _ service.Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Create(ctx context.Context, org service.Organization) (service.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCanonical[org.CanonicalName]; exists {
		return service.Organization{}, service.ErrDuplicateTenant
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	org.UpdatedAt = org.CreatedAt

	r.byID[org.ID] = org
	r.byCanonical[org.CanonicalName] = org.ID
	return org, nil
}

func (r *MemoryRepository) FindByCanonicalName(ctx context.Context, canonical string) (service.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCanonical[canonical]
	if !ok {
		return service.Organization{}, service.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Organization, 0, len(r.byID))
	for _, org := range r.byID {
		items = append(items, org)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	page, pageSize := normalizePage(opts)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	return service.ListResult{
		Organizations: items[start:end],
		Page:          page,
		PageSize:      pageSize,
		TotalItems:    len(items),
		TotalPages:    (len(items) + pageSize - 1) / pageSize,
	}, nil
}

func (r *MemoryRepository) CanonicalNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byCanonical))
	for name := range r.byCanonical {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *MemoryRepository) Touch(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, ok := r.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	org.UpdatedAt = time.Now().UTC()
	r.byID[id] = org
	return nil
}
