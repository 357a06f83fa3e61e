package http

import (
	"context"
	"net/http"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/server/auth"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/policy"
)

type route struct {
	method  string
	pattern string
	policy  policy.Policy
	handler http.HandlerFunc
}

// routes is the single declaration of the API surface.
func (s *Server) routes() []route {
	public := policy.AllowPublic()
	authed := policy.Authenticated()
	admin := policy.Role(common.RoleAdmin)

	selfOrAdmin := policy.OwnerOrRole(common.RoleAdmin, "id", func(_ context.Context, target string) (int64, error) {
		return policy.ParseID(target)
	})
	experienceOwnerOrAdmin := policy.OwnerOrRole(common.RoleAdmin, "id", func(ctx context.Context, target string) (int64, error) {
		id, err := policy.ParseID(target)
		if err != nil {
			return 0, err
		}
		return s.svc.Experiences.Owner(ctx, id)
	})
	userRole := func(ctx context.Context, id int64) (string, error) {
		return s.svc.Users.Role(ctx, id)
	}
	deleteUser := admin.WithGuards("id", policy.NotSelf(), policy.NotTargetRole(common.RoleAdmin, userRole))
	banUser := admin.WithGuards("id", policy.NotSelf())

	return []route{
		{http.MethodGet, "/health", public, s.handleHealth},
		{http.MethodGet, "/metrics", public, s.metrics.Handler().ServeHTTP},

		{http.MethodPost, "/auth/register", public, s.handleRegister},
		{http.MethodGet, "/auth/verify/{token}", public, s.handleVerifyEmail},
		{http.MethodPost, "/auth/login", public, s.handleLogin},
		{http.MethodPost, "/auth/logout", authed, s.handleLogout},
		{http.MethodPost, "/auth/refresh", authed.WithPurpose(auth.PurposeRefresh), s.handleRefresh},
		{http.MethodPost, "/auth/change_password", authed, s.handleChangePassword},
		{http.MethodPost, "/auth/forgot_password/sendmail", public, s.handleForgotPassword},
		{http.MethodGet, "/auth/forgot-password/{token}", public, s.handleResetForm},
		{http.MethodPost, "/auth/forgot-password/{token}", public, s.handleResetPassword},

		{http.MethodGet, "/users", admin, s.handleListUsers},
		{http.MethodGet, "/users/{id}", selfOrAdmin, s.handleGetUser},
		{http.MethodPut, "/users/{id}", selfOrAdmin, s.handleUpdateUser},
		{http.MethodGet, "/users/profile/setup", authed, s.handleProfileStatus},
		{http.MethodPost, "/users/profile/setup", authed, s.handleProfileSetup},

		{http.MethodGet, "/admin/users", admin, s.handleListUsers},
		{http.MethodDelete, "/admin/users/{id}", deleteUser, s.handleDeleteUser},
		{http.MethodPatch, "/admin/users/{id}/ban", banUser, s.handleSetBanned(true)},
		{http.MethodPatch, "/admin/users/{id}/unban", banUser, s.handleSetBanned(false)},
		{http.MethodPatch, "/admin/users/{id}/premium", admin, s.handleSetPremium(true)},
		{http.MethodPatch, "/admin/users/{id}/free", admin, s.handleSetPremium(false)},
		{http.MethodGet, "/admin/experiences/pending", admin, s.handlePendingExperiences},
		{http.MethodPatch, "/admin/experiences/{id}/approve", admin, s.handleModerate(models.ExperienceApproved)},
		{http.MethodPatch, "/admin/experiences/{id}/reject", admin, s.handleModerate(models.ExperienceRejected)},
		{http.MethodPost, "/admin/universities", admin, s.handleCreateUniversities},
		{http.MethodPost, "/admin/specialities", admin, s.handleCreateSpecialities},
		{http.MethodGet, "/admin/stats/users", admin, s.handleUserStats},
		{http.MethodGet, "/admin/stats/experiences", admin, s.handleExperienceStats},

		{http.MethodGet, "/universities", public, s.handleListUniversities},
		{http.MethodGet, "/universities/search", public, s.handleSearchUniversities},
		{http.MethodGet, "/universities/city/{city}", public, s.handleUniversitiesInCity},
		{http.MethodPost, "/universities/ids", public, s.handleUniversitiesByIDs},
		{http.MethodPost, "/universities/ids/paginate", public, s.handleUniversityPage(lookupPaginate)},
		{http.MethodPost, "/universities/ids/sort", public, s.handleUniversityPage(lookupSort)},
		{http.MethodPost, "/universities/ids/filter", public, s.handleUniversityPage(lookupFilter)},
		{http.MethodPost, "/universities/ids/search", public, s.handleUniversityPage(lookupSearch)},
		{http.MethodGet, "/universities/{id}", public, s.handleGetUniversity},
		{http.MethodPut, "/universities/{id}", admin, s.handleUpdateUniversity},
		{http.MethodDelete, "/universities/{id}", admin, s.handleDeleteUniversity},
		{http.MethodGet, "/specialities", public, s.handleListSpecialities},
		{http.MethodGet, "/specialities/{name}", public, s.handleGetSpeciality},

		{http.MethodPost, "/experiences", authed, s.handleShareExperience},
		{http.MethodDelete, "/experiences/{id}", experienceOwnerOrAdmin, s.handleDeleteExperience},

		{http.MethodPost, "/grades", authed, s.handleSaveGrades},
		{http.MethodGet, "/grades", authed, s.handleListGrades},
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
