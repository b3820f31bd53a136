// Package memory provides in-memory implementations of the leave
// collaborator interfaces, for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - Backs every repository interface with maps
// =============================================================================

type Store struct {
	mu           sync.RWMutex
	users        map[string]leave.User
	absences     map[string]leave.Absence
	certificates map[string]leave.Certificate
	settings     *leave.PolicySettings
	changeLog    []leave.SettingsChangeLog
}

func New() *Store {
	return &Store{
		users:        make(map[string]leave.User),
		absences:     make(map[string]leave.Absence),
		certificates: make(map[string]leave.Certificate),
	}
}

// Compile-time interface checks
var (
	_ leave.UserDirectory         = (*Store)(nil)
	_ leave.AbsenceRepository     = (*Store)(nil)
	_ leave.CertificateRepository = (*Store)(nil)
	_ leave.SettingsRepository    = (*Store)(nil)
)

// =============================================================================
// USER DIRECTORY
// =============================================================================

func (s *Store) SaveUser(_ context.Context, u leave.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]leave.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// =============================================================================
// ABSENCE REPOSITORY
// =============================================================================

func (s *Store) CreateAbsence(_ context.Context, a *leave.Absence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.absences[a.ID]; exists {
		return fmt.Errorf("absence %s already exists", a.ID)
	}
	s.absences[a.ID] = *a
	return nil
}

func (s *Store) GetAbsence(_ context.Context, id string) (*leave.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.absences[id]
	if !ok {
		return nil, nil
	}
	a.Certificates = s.certsForLocked(id)
	return &a, nil
}

func (s *Store) FindAbsences(_ context.Context, filter leave.AbsenceFilter) ([]leave.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []leave.Absence
	for id, a := range s.absences {
		a.Certificates = s.certsForLocked(id)
		if filter.Matches(&a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].From.Before(result[j].From) })
	return result, nil
}

func (s *Store) UpdateAbsenceStatus(_ context.Context, id string, status leave.AbsenceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.absences[id]
	if !ok {
		return fmt.Errorf("absence %s not found", id)
	}
	a.Status = status
	s.absences[id] = a
	return nil
}

func (s *Store) DeleteAbsence(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.absences, id)
	return nil
}

// =============================================================================
// CERTIFICATE REPOSITORY
// =============================================================================

func (s *Store) CreateCertificate(_ context.Context, c *leave.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certificates[c.ID] = *c
	return nil
}

func (s *Store) GetCertificateWithAbsence(_ context.Context, id string) (*leave.Certificate, *leave.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certificates[id]
	if !ok {
		return nil, nil, nil
	}
	a, ok := s.absences[c.AbsenceID]
	if !ok {
		return nil, nil, nil
	}
	a.Certificates = s.certsForLocked(a.ID)
	return &c, &a, nil
}

func (s *Store) ListCertificates(_ context.Context, absenceID string) ([]leave.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.certsForLocked(absenceID), nil
}

func (s *Store) DeleteCertificate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.certificates, id)
	return nil
}

func (s *Store) certsForLocked(absenceID string) []leave.Certificate {
	var certs []leave.Certificate
	for _, c := range s.certificates {
		if c.AbsenceID == absenceID {
			certs = append(certs, c)
		}
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].ID < certs[j].ID })
	return certs
}

// =============================================================================
// SETTINGS REPOSITORY
// =============================================================================

func (s *Store) GetSettings(_ context.Context) (*leave.PolicySettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, nil
	}
	cp := *s.settings
	return &cp, nil
}

func (s *Store) SaveSettings(_ context.Context, settings leave.PolicySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

func (s *Store) AppendChangeLog(_ context.Context, entry leave.SettingsChangeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changeLog = append(s.changeLog, entry)
	return nil
}

// ChangeLog returns the recorded settings audit entries.
func (s *Store) ChangeLog() []leave.SettingsChangeLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]leave.SettingsChangeLog{}, s.changeLog...)
}

// =============================================================================
// IN-MEMORY FILE STORE
// =============================================================================

// Files is an in-memory leave.FileStore. It can be told to fail to
// exercise the admission controller's rollback path.
type Files struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailSaves makes every SaveFile return an error.
	FailSaves bool
}

func NewFiles() *Files {
	return &Files{objects: make(map[string][]byte)}
}

var _ leave.FileStore = (*Files)(nil)

func (f *Files) SaveFile(_ context.Context, data []byte, key string) (leave.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSaves {
		return leave.StoredFile{}, fmt.Errorf("simulated storage failure")
	}
	path := "mem://" + key
	f.objects[path] = append([]byte{}, data...)
	return leave.StoredFile{StoragePath: path, StoredName: key}, nil
}

func (f *Files) DeleteFile(_ context.Context, storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, storagePath)
	return nil
}

// Count returns the number of stored objects.
func (f *Files) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}
