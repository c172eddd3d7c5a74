package collaborators

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-oauth-proxy/identity"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

// FakePersonnelDirectory serves a fixed roster.
type FakePersonnelDirectory struct {
	People []Person
}

var _ PersonnelDirectory = (*FakePersonnelDirectory)(nil)

func (f *FakePersonnelDirectory) List(context.Context, identity.UserContext) ([]Person, error) {
	return append([]Person(nil), f.People...), nil
}

// FakeIncidentStore keeps incidents in memory.
type FakeIncidentStore struct {
	mu        sync.Mutex
	Incidents []Incident
}

var _ IncidentStore = (*FakeIncidentStore)(nil)

func (f *FakeIncidentStore) List(context.Context, identity.UserContext) ([]Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Incident(nil), f.Incidents...), nil
}

func (f *FakeIncidentStore) MarkReviewed(_ context.Context, caller identity.UserContext, incidentID string) (*Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Incidents {
		if f.Incidents[i].ID == incidentID {
			f.Incidents[i].Reviewed = true
			f.Incidents[i].ReviewedBy = caller.Email
			out := f.Incidents[i]
			return &out, nil
		}
	}
	return nil, errors.ErrNotFound
}

// FakeDispatchLog records deletions.
type FakeDispatchLog struct {
	mu      sync.Mutex
	Entries map[string]DispatchEntry
	Deleted []string
}

var _ DispatchLog = (*FakeDispatchLog)(nil)

func (f *FakeDispatchLog) Delete(_ context.Context, _ identity.UserContext, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Entries != nil {
		if _, ok := f.Entries[entryID]; !ok {
			return errors.ErrNotFound
		}
		delete(f.Entries, entryID)
	}
	f.Deleted = append(f.Deleted, entryID)
	return nil
}
