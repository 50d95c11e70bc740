// Package tenant carries the active restaurant scope. Every tenant-scoped
// read or write takes a Scope explicitly and checks it with Require before
// the store is touched.
package tenant

import (
	"errors"
	"fmt"
	"strings"

	"restocrm/internal/docstore"
	"restocrm/internal/models"
)

// ErrNoTenantSelected means the caller has no active restaurant and must
// authenticate again.
var ErrNoTenantSelected = errors.New("no tenant selected")

// Scope identifies one restaurant. Data lives under tenants/{Segment()}.
type Scope struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func New(id, name string) Scope {
	return Scope{ID: id, Name: name}
}

// Segment is the storage path segment: the restaurant name, trimmed.
func (s Scope) Segment() string {
	return strings.TrimSpace(s.Name)
}

func (s Scope) IsZero() bool {
	return s.Segment() == ""
}

// Require fails with ErrNoTenantSelected for an empty or unusable scope.
func Require(s Scope) error {
	seg := s.Segment()
	if seg == "" {
		return ErrNoTenantSelected
	}
	if strings.Contains(seg, "/") {
		return fmt.Errorf("%w: invalid tenant name %q", ErrNoTenantSelected, s.Name)
	}
	return nil
}

// Collection returns tenants/{segment}/{name}.
func (s Scope) Collection(name string) (string, error) {
	if err := Require(s); err != nil {
		return "", err
	}
	return docstore.Path(models.CollectionTenants, s.Segment(), name)
}

func (s Scope) String() string {
	if s.ID == "" {
		return s.Segment()
	}
	return fmt.Sprintf("%s (%s)", s.Segment(), s.ID)
}
