package http

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server/auth"
	"github.com/pathwayfr/pathway/internal/server/metrics"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/policy"
	"github.com/pathwayfr/pathway/internal/server/revocation"
	"github.com/pathwayfr/pathway/internal/server/services"
)

// fakeAuth authenticates with a real issuer and registry over an in-memory
// user table; the flows are scripted per test.
type fakeAuth struct {
	mu      sync.Mutex
	users   map[int64]*models.User
	tokens  *auth.TokenIssuer
	revoked *revocation.MemoryRegistry

	verifyErr error
	resetErr  error
	loginErr  error
	lastReset struct{ token, password string }
	lastReg   services.RegisterInput
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		users: map[int64]*models.User{},
		tokens: auth.NewTokenIssuer([]byte("test-secret"), map[auth.Purpose]time.Duration{
			auth.PurposeAccess:            15 * time.Minute,
			auth.PurposeRefresh:           time.Hour,
			auth.PurposeEmailVerification: time.Hour,
			auth.PurposePasswordReset:     time.Hour,
		}),
		revoked: revocation.NewMemoryRegistry(),
	}
}

func (f *fakeAuth) addUser(id int64, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &models.User{ID: id, Email: "u" + strconv.FormatInt(id, 10) + "@example.com", Role: role, IsVerified: true}
}

func (f *fakeAuth) token(t *testing.T, id int64, p auth.Purpose) string {
	t.Helper()
	tok, _, err := f.tokens.Issue(strconv.FormatInt(id, 10), p)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	return tok
}

func (f *fakeAuth) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReg = in
	for _, u := range f.users {
		if u.Email == in.Email {
			return nil, common.ErrEmailTaken
		}
	}
	u := &models.User{ID: int64(len(f.users) + 100), Email: in.Email, Role: common.RoleUser}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeAuth) VerifyEmail(context.Context, string) error { return f.verifyErr }

func (f *fakeAuth) Login(_ context.Context, email, _ string) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &services.TokenPair{AccessToken: "a-" + email, RefreshToken: "r-" + email}, nil
}

func (f *fakeAuth) Logout(ctx context.Context, p *policy.Principal) error {
	return f.revoked.Revoke(ctx, p.TokenID, p.ExpiresAt)
}

func (f *fakeAuth) Refresh(_ context.Context, p *policy.Principal) (string, error) {
	tok, _, err := f.tokens.Issue(strconv.FormatInt(p.UserID, 10), auth.PurposeAccess)
	return tok, err
}

func (f *fakeAuth) ChangePassword(_ context.Context, _ int64, current, _ string) error {
	if current != "Current1!" {
		return common.ErrInvalidCredentials
	}
	return nil
}

func (f *fakeAuth) SendPasswordReset(_ context.Context, email string) error {
	if email != "known@example.com" {
		return common.ErrUserNotFound
	}
	return nil
}

func (f *fakeAuth) CheckResetToken(context.Context, string) error { return f.resetErr }

func (f *fakeAuth) ResetPassword(_ context.Context, token, password string) error {
	f.lastReset.token, f.lastReset.password = token, password
	if f.resetErr != nil {
		return f.resetErr
	}
	return auth.CheckPasswordStrength(password)
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string, purpose auth.Purpose) (*policy.Principal, error) {
	claims, err := f.tokens.Verify(token, purpose, 0)
	if err != nil {
		return nil, err
	}
	if revoked, _ := f.revoked.IsRevoked(ctx, claims.ID); revoked {
		return nil, common.ErrTokenRevoked
	}
	id, _ := strconv.ParseInt(claims.Subject, 10, 64)
	f.mu.Lock()
	u, ok := f.users[id]
	f.mu.Unlock()
	if !ok {
		return nil, common.ErrTokenUserNotFound
	}
	return &policy.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

type fakeUsers struct {
	auth    *fakeAuth
	deleted []int64
	banned  map[int64]bool
	premium map[int64]bool
	updated map[int64]services.UserUpdate
}

func (f *fakeUsers) Get(_ context.Context, id int64) (*models.User, error) {
	f.auth.mu.Lock()
	defer f.auth.mu.Unlock()
	if u, ok := f.auth.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrUserNotFound
}

func (f *fakeUsers) List(context.Context) ([]*models.User, error) {
	f.auth.mu.Lock()
	defer f.auth.mu.Unlock()
	var out []*models.User
	for _, u := range f.auth.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) Role(ctx context.Context, id int64) (string, error) {
	u, err := f.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUsers) SetBanned(_ context.Context, id int64, banned bool) error {
	if f.banned == nil {
		f.banned = map[int64]bool{}
	}
	f.banned[id] = banned
	return nil
}

func (f *fakeUsers) SetPremium(_ context.Context, id int64, premium bool) error {
	if f.premium == nil {
		f.premium = map[int64]bool{}
	}
	f.premium[id] = premium
	return nil
}

func (f *fakeUsers) ProfileStatus(context.Context, int64) (*services.ProfileStatus, error) {
	return &services.ProfileStatus{Complete: false, Missing: []string{"bac_type"}}, nil
}

func (f *fakeUsers) SetupProfile(ctx context.Context, id int64, in services.ProfileInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, common.Validation("%v", err)
	}
	return f.Get(ctx, id)
}

func (f *fakeUsers) UpdateUser(ctx context.Context, id int64, in services.UserUpdate) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.updated == nil {
		f.updated = map[int64]services.UserUpdate{}
	}
	f.updated[id] = in
	cp := *u
	if in.FirstName != nil {
		cp.FirstName = *in.FirstName
	}
	return &cp, nil
}

type fakeCatalog struct {
	createdUniversities []services.UniversityInput
	createdSpecialities []services.SpecialityInput
	queries             []services.UniversityQuery
}

func (f *fakeCatalog) UniversityByName(_ context.Context, name string) (*models.University, error) {
	if name != "Sorbonne" {
		return nil, common.NotFound("university %q not found", name)
	}
	return &models.University{ID: 1, Name: "Sorbonne", City: "Paris"}, nil
}

func (f *fakeCatalog) UniversitiesByIDs(_ context.Context, ids []int64) ([]*models.University, error) {
	if len(ids) == 0 {
		return nil, common.Validation("ids are required")
	}
	out := make([]*models.University, len(ids))
	for i, id := range ids {
		out[i] = &models.University{ID: id}
	}
	return out, nil
}

func (f *fakeCatalog) QueryUniversities(_ context.Context, q services.UniversityQuery) (*services.UniversityPage, error) {
	f.queries = append(f.queries, q)
	return &services.UniversityPage{Items: []*models.University{{ID: 1}}, Total: 1, Page: 1, Pages: 1}, nil
}

func (f *fakeCatalog) Universities(context.Context) ([]*models.University, error) { return nil, nil }

func (f *fakeCatalog) University(_ context.Context, id int64) (*models.University, error) {
	if id != 1 {
		return nil, common.NotFound("university not found")
	}
	return &models.University{ID: 1, Name: "Sorbonne", City: "Paris"}, nil
}

func (f *fakeCatalog) UniversitiesInCity(_ context.Context, city string) ([]*models.University, error) {
	if city != "Paris" {
		return nil, common.NotFound("no university found in %s", city)
	}
	return []*models.University{{ID: 1, Name: "Sorbonne", City: "Paris"}}, nil
}

func (f *fakeCatalog) SearchUniversities(_ context.Context, name, city string) ([]*models.University, error) {
	return []*models.University{{ID: 1, Name: name, City: city}}, nil
}

func (f *fakeCatalog) CreateUniversities(_ context.Context, in []services.UniversityInput) ([]*models.University, error) {
	f.createdUniversities = append(f.createdUniversities, in...)
	out := make([]*models.University, len(in))
	for i, u := range in {
		out[i] = &models.University{ID: int64(i + 1), Name: u.Name, City: u.City}
	}
	return out, nil
}

func (f *fakeCatalog) UpdateUniversity(_ context.Context, id int64, in services.UniversityUpdate) (*models.University, error) {
	u := &models.University{ID: id}
	if in.Name != nil {
		u.Name = *in.Name
	}
	return u, nil
}

func (f *fakeCatalog) DeleteUniversity(context.Context, int64) error { return nil }

func (f *fakeCatalog) Specialities(context.Context) ([]*models.Speciality, error) { return nil, nil }

func (f *fakeCatalog) SpecialityByName(_ context.Context, name string) (*models.Speciality, error) {
	return &models.Speciality{ID: 3, Name: name}, nil
}

func (f *fakeCatalog) CreateSpecialities(_ context.Context, in []services.SpecialityInput) ([]*models.Speciality, error) {
	f.createdSpecialities = append(f.createdSpecialities, in...)
	return []*models.Speciality{}, nil
}

type fakeExperiences struct {
	owners    map[int64]int64
	deleted   []int64
	moderated map[int64]string
}

func (f *fakeExperiences) Share(_ context.Context, userID int64, in services.ExperienceInput) (*models.Experience, error) {
	if err := in.Validate(); err != nil {
		return nil, common.Validation("%v", err)
	}
	return &models.Experience{ID: 9, UserID: userID, Status: models.ExperiencePending}, nil
}

func (f *fakeExperiences) Pending(context.Context) ([]*models.Experience, error) { return nil, nil }

func (f *fakeExperiences) Moderate(_ context.Context, id int64, status string) error {
	if f.moderated == nil {
		f.moderated = map[int64]string{}
	}
	f.moderated[id] = status
	return nil
}

func (f *fakeExperiences) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeExperiences) Owner(_ context.Context, id int64) (int64, error) {
	owner, ok := f.owners[id]
	if !ok {
		return 0, common.NotFound("experience not found")
	}
	return owner, nil
}

type fakeGrades struct {
	saved map[int64][]services.GradeInput
}

func (f *fakeGrades) Save(_ context.Context, userID int64, in []services.GradeInput) error {
	if len(in) == 0 {
		return common.Validation("grades must be a non-empty list")
	}
	if f.saved == nil {
		f.saved = map[int64][]services.GradeInput{}
	}
	f.saved[userID] = in
	return nil
}

func (f *fakeGrades) List(_ context.Context, userID int64) ([]*models.Grade, error) {
	out := []*models.Grade{}
	for _, g := range f.saved[userID] {
		out = append(out, &models.Grade{UserID: userID, Level: g.Level, Average: *g.Average})
	}
	return out, nil
}

type fakeStats struct{ err error }

func (f *fakeStats) Users(context.Context) (*models.UserStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.UserStats{Total: 4, Premium: 1, Free: 3, ConversionRate: 25}, nil
}

func (f *fakeStats) Experiences(context.Context) (*models.ExperienceStats, error) {
	return &models.ExperienceStats{Total: 2, Approved: 1, ApprovalRate: 50}, nil
}

type testEnv struct {
	auth        *fakeAuth
	users       *fakeUsers
	catalog     *fakeCatalog
	experiences *fakeExperiences
	grades      *fakeGrades
	stats       *fakeStats
	server      *Server
}

func newTestEnv() *testEnv {
	a := newFakeAuth()
	env := &testEnv{
		auth:        a,
		users:       &fakeUsers{auth: a},
		catalog:     &fakeCatalog{},
		experiences: &fakeExperiences{owners: map[int64]int64{}},
		grades:      &fakeGrades{},
		stats:       &fakeStats{},
	}
	env.server = NewServer("127.0.0.1:0", "http://front.test/", Services{
		Auth:        env.auth,
		Users:       env.users,
		Catalog:     env.catalog,
		Experiences: env.experiences,
		Grades:      env.grades,
		Stats:       env.stats,
	}, metrics.New(), logging.Nop())
	return env
}

var errDBDown = errors.New("db down")
