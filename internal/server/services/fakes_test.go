package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/repositories/experiences"
	"github.com/pathwayfr/pathway/internal/server/repositories/grades"
	"github.com/pathwayfr/pathway/internal/server/repositories/revokedtokens"
	"github.com/pathwayfr/pathway/internal/server/repositories/specialities"
	"github.com/pathwayfr/pathway/internal/server/repositories/universities"
	"github.com/pathwayfr/pathway/internal/server/repositories/users"
	_ "modernc.org/sqlite"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// newTxDB opens an empty in-memory database; the fake repositories ignore
// the transaction but dbx.WithTx still begins and commits a real one.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("sql.Open error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// --- users ---

type memUsers struct {
	mu     sync.Mutex
	rows   map[int64]*models.User
	nextID int64
	err    error
}

func newMemUsers() *memUsers { return &memUsers{rows: map[int64]*models.User{}} }

func (m *memUsers) put(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	m.rows[u.ID] = &u
	cp := u
	return &cp
}

func (m *memUsers) get(id int64) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.rows[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	for _, r := range m.rows {
		if r.Email == u.Email {
			m.mu.Unlock()
			return nil, common.ErrEmailTaken
		}
	}
	m.mu.Unlock()
	u.CreatedAt = time.Now()
	return m.put(*u), nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u := m.get(id); u != nil {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) List(context.Context) ([]*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.rows {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) update(id int64, fn func(u *models.User)) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) SetVerificationToken(_ context.Context, id int64, token *string) error {
	return m.update(id, func(u *models.User) { u.VerificationToken = token })
}

func (m *memUsers) MarkVerified(_ context.Context, id int64) error {
	return m.update(id, func(u *models.User) { u.IsVerified = true; u.VerificationToken = nil })
}

func (m *memUsers) SetPassword(_ context.Context, id int64, hash string) error {
	return m.update(id, func(u *models.User) { u.Password = hash })
}

func (m *memUsers) SetBanned(_ context.Context, id int64, banned bool) error {
	return m.update(id, func(u *models.User) { u.IsBanned = banned })
}

func (m *memUsers) SetSubscription(_ context.Context, id int64, premium bool) error {
	return m.update(id, func(u *models.User) { u.Subscription = premium })
}

func (m *memUsers) UpdateProfile(_ context.Context, id int64, p *models.Profile) error {
	return m.update(id, func(u *models.User) {
		u.Accepted, u.BacType, u.TCFScore, u.BacAverage = p.Accepted, p.BacType, p.TCFScore, p.BacAverage
		u.Speciality, u.AnneeEtudeActuelle = &p.Speciality, &p.AnneeEtudeActuelle
	})
}

func (m *memUsers) UpdateDetails(_ context.Context, d *models.User) error {
	return m.update(d.ID, func(u *models.User) {
		u.FirstName, u.LastName = d.FirstName, d.LastName
		u.Accepted, u.Experience, u.NbrExperience = d.Accepted, d.Experience, d.NbrExperience
		u.BacAverage, u.BacType, u.TCFScore = d.BacAverage, d.BacType, d.TCFScore
		u.Localisation, u.DateOfBirth, u.APropos = d.Localisation, d.DateOfBirth, d.APropos
		u.UnivActuel, u.Speciality, u.AnneeEtudeActuelle = d.UnivActuel, d.Speciality, d.AnneeEtudeActuelle
	})
}

func (m *memUsers) Delete(_ context.Context, id int64) error {
	if err := m.update(id, func(*models.User) {}); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.rows, id)
	m.mu.Unlock()
	return nil
}

func (m *memUsers) Counts(_ context.Context, since time.Time) (*models.UserCounts, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.UserCounts{}
	for _, u := range m.rows {
		c.Total++
		recent := !u.CreatedAt.Before(since)
		if u.Subscription {
			c.Premium++
			if recent {
				c.PremiumLast30Days++
			}
		}
		if u.IsBanned {
			c.Banned++
		}
		if recent {
			c.NewLast30Days++
		}
	}
	return c, nil
}

// --- catalog ---

type memUniversities struct {
	rows   map[int64]*models.University
	nextID int64
	err    error
}

func newMemUniversities() *memUniversities { return &memUniversities{rows: map[int64]*models.University{}} }

func (m *memUniversities) Create(_ context.Context, u *models.University) (*models.University, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	cp := *u
	cp.ID = m.nextID
	m.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memUniversities) GetByID(_ context.Context, id int64) (*models.University, error) {
	if u, ok := m.rows[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memUniversities) GetByName(_ context.Context, name string) (*models.University, error) {
	if list := m.filter(func(u *models.University) bool { return u.Name == name }); len(list) > 0 {
		return list[0], nil
	}
	return nil, common.ErrorNotFound
}

func (m *memUniversities) FindByIDs(_ context.Context, ids []int64) ([]*models.University, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.filter(func(u *models.University) bool { return want[u.ID] }), m.err
}

func (m *memUniversities) Page(ctx context.Context, q universities.PageQuery) ([]*models.University, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	if !q.SortBy.Sortable() {
		return nil, 0, fmt.Errorf("unsupported sort column %q", q.SortBy)
	}
	has := func(v, sub string) bool { return strings.Contains(strings.ToLower(v), strings.ToLower(sub)) }
	list, _ := m.FindByIDs(ctx, q.IDs)
	var out []*models.University
	for _, u := range list {
		if q.Search != "" && !has(u.Name, q.Search) && !has(u.City, q.Search) {
			continue
		}
		if v, ok := q.Filters[universities.ColumnName]; ok && !has(u.Name, v) {
			continue
		}
		if v, ok := q.Filters[universities.ColumnCity]; ok && !has(u.City, v) {
			continue
		}
		out = append(out, u)
	}
	less := func(a, b *models.University) bool {
		switch q.SortBy {
		case universities.ColumnName:
			return a.Name < b.Name
		case universities.ColumnCity:
			return a.City < b.City
		case universities.ColumnSpecialitiesNbr:
			return a.SpecialitiesNbr < b.SpecialitiesNbr
		case universities.ColumnAccepted:
			return a.NbrCandidatesAccepted < b.NbrCandidatesAccepted
		case universities.ColumnCreatedAt:
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	total := len(out)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := min(q.Offset+q.Limit, total)
	return out[q.Offset:end], total, nil
}

func (m *memUniversities) filter(keep func(*models.University) bool) []*models.University {
	var out []*models.University
	for id := int64(1); id <= m.nextID; id++ {
		if u, ok := m.rows[id]; ok && keep(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memUniversities) List(context.Context) ([]*models.University, error) {
	return m.filter(func(*models.University) bool { return true }), m.err
}

func (m *memUniversities) ListByCity(_ context.Context, city string) ([]*models.University, error) {
	return m.filter(func(u *models.University) bool { return u.City == city }), m.err
}

func (m *memUniversities) Search(_ context.Context, name, city string) ([]*models.University, error) {
	return m.filter(func(u *models.University) bool {
		return (name == "" || u.Name == name) && (city == "" || u.City == city)
	}), m.err
}

func (m *memUniversities) CountExisting(_ context.Context, ids []int64) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			n++
		}
	}
	return n, m.err
}

func (m *memUniversities) Update(_ context.Context, u *models.University) error {
	if _, ok := m.rows[u.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUniversities) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.rows, id)
	return nil
}

type memSpecialities struct {
	rows   map[int64]*models.Speciality
	nextID int64
	err    error
}

func newMemSpecialities() *memSpecialities { return &memSpecialities{rows: map[int64]*models.Speciality{}} }

func (m *memSpecialities) Create(_ context.Context, s *models.Speciality) (*models.Speciality, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	cp := *s
	cp.ID = m.nextID
	m.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memSpecialities) GetByID(_ context.Context, id int64) (*models.Speciality, error) {
	if s, ok := m.rows[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memSpecialities) GetByName(_ context.Context, name string) (*models.Speciality, error) {
	for id := int64(1); id <= m.nextID; id++ {
		if s, ok := m.rows[id]; ok && s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memSpecialities) List(context.Context) ([]*models.Speciality, error) {
	var out []*models.Speciality
	for id := int64(1); id <= m.nextID; id++ {
		if s, ok := m.rows[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, m.err
}

// --- experiences and grades ---

type memExperiences struct {
	rows    map[int64]*models.Experience
	nextID  int64
	err     error
	linkErr error
}

func newMemExperiences() *memExperiences { return &memExperiences{rows: map[int64]*models.Experience{}} }

func (m *memExperiences) Create(_ context.Context, e *models.Experience) (*models.Experience, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	cp := *e
	cp.ID = m.nextID
	cp.UniversityIDs = nil
	m.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memExperiences) LinkUniversities(_ context.Context, id int64, ids []int64) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	e, ok := m.rows[id]
	if !ok {
		return errors.New("fk violation")
	}
	e.UniversityIDs = append(e.UniversityIDs, ids...)
	return nil
}

func (m *memExperiences) GetByID(_ context.Context, id int64) (*models.Experience, error) {
	if e, ok := m.rows[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (m *memExperiences) ListByStatus(_ context.Context, status string) ([]*models.Experience, error) {
	var out []*models.Experience
	for id := int64(1); id <= m.nextID; id++ {
		if e, ok := m.rows[id]; ok && e.Status == status {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, m.err
}

func (m *memExperiences) SetStatus(_ context.Context, id int64, status string) error {
	e, ok := m.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	e.Status = status
	return nil
}

func (m *memExperiences) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memExperiences) Counts(context.Context) (*models.ExperienceStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := &models.ExperienceStats{}
	for _, e := range m.rows {
		s.Total++
		switch e.Status {
		case models.ExperienceApproved:
			s.Approved++
		case models.ExperienceRejected:
			s.Rejected++
		default:
			s.Pending++
		}
	}
	return s, nil
}

type memGrades struct {
	rows map[int64]map[string]float64
	err  error
}

func newMemGrades() *memGrades { return &memGrades{rows: map[int64]map[string]float64{}} }

func (m *memGrades) Upsert(_ context.Context, g *models.Grade) error {
	if m.err != nil {
		return m.err
	}
	if m.rows[g.UserID] == nil {
		m.rows[g.UserID] = map[string]float64{}
	}
	m.rows[g.UserID][g.Level] = g.Average
	return nil
}

func (m *memGrades) ListByUser(_ context.Context, userID int64) ([]*models.Grade, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.Grade
	for level, avg := range m.rows[userID] {
		out = append(out, &models.Grade{UserID: userID, Level: level, Average: avg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

// --- manager ---

type fakeRepoManager struct {
	users        *memUsers
	universities *memUniversities
	specialities *memSpecialities
	experiences  *memExperiences
	grades       *memGrades
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:        newMemUsers(),
		universities: newMemUniversities(),
		specialities: newMemSpecialities(),
		experiences:  newMemExperiences(),
		grades:       newMemGrades(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error              { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                           { return m.users }
func (m *fakeRepoManager) Universities(dbx.DBTX) universities.Repository             { return m.universities }
func (m *fakeRepoManager) Specialities(dbx.DBTX) specialities.Repository             { return m.specialities }
func (m *fakeRepoManager) Experiences(dbx.DBTX) experiences.Repository               { return m.experiences }
func (m *fakeRepoManager) Grades(dbx.DBTX) grades.Repository                         { return m.grades }
func (m *fakeRepoManager) RevokedTokens(dbx.DBTX) revokedtokens.Repository           { return nil }

// --- notifier ---

type sentMail struct {
	kind, to, token string
}

type recNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recNotifier) record(kind, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind, to, token})
	return n.err
}

func (n *recNotifier) SendVerification(_ context.Context, to, _, token string) error {
	return n.record("verify", to, token)
}

func (n *recNotifier) SendPasswordReset(_ context.Context, to, token string) error {
	return n.record("reset", to, token)
}

func (n *recNotifier) SendPasswordChanged(_ context.Context, to string) error {
	return n.record("changed", to, "")
}

func (n *recNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}
