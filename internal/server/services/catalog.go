package services

import (
	"context"
	"database/sql"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/dbx"
	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/repositories/repomanager"
	"github.com/pathwayfr/pathway/internal/server/repositories/universities"
)

type UniversityInput struct {
	Name string `json:"univ_name"`
	City string `json:"city"`
}

// UniversityUpdate carries the fields of a partial update; nil means unchanged.
type UniversityUpdate struct {
	Name                  *string `json:"univ_name"`
	City                  *string `json:"city"`
	SpecialitiesNbr       *int    `json:"specialities_nbr"`
	NbrCandidatesAccepted *int    `json:"nbr_candidates_accepted"`
}

// UniversityQuery selects a page among the universities listed in IDs.
// Zero values take the defaults: page 1, 10 per page, ordered by name.
type UniversityQuery struct {
	IDs       []int64           `json:"ids"`
	Page      int               `json:"page"`
	PerPage   int               `json:"per_page"`
	SortBy    string            `json:"sort_by"`
	SortOrder string            `json:"sort_order"`
	Filters   map[string]string `json:"filters"`
	Search    string            `json:"search"`
}

// UniversityPage is one page of a UniversityQuery.
type UniversityPage struct {
	Items []*models.University `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Pages int                  `json:"pages"`
}

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// columnAliases maps the request names onto table columns.
var columnAliases = map[string]universities.Column{
	"id":                      universities.ColumnID,
	"id_university":           universities.ColumnID,
	"name":                    universities.ColumnName,
	"univ_name":               universities.ColumnName,
	"city":                    universities.ColumnCity,
	"specialities_nbr":        universities.ColumnSpecialitiesNbr,
	"nbr_candidates_accepted": universities.ColumnAccepted,
	"created_at":              universities.ColumnCreatedAt,
}

func (q *UniversityQuery) pageQuery() (universities.PageQuery, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = defaultPerPage
	}
	if q.SortBy == "" {
		q.SortBy = string(universities.ColumnName)
	}
	if q.SortOrder == "" {
		q.SortOrder = "asc"
	}
	q.SortOrder = strings.ToLower(q.SortOrder)

	err := validation.ValidateStruct(q,
		validation.Field(&q.IDs, validation.Required),
		validation.Field(&q.Page, validation.Min(1)),
		validation.Field(&q.PerPage, validation.Min(1), validation.Max(maxPerPage)),
		validation.Field(&q.SortOrder, validation.In("asc", "desc")),
	)
	if err != nil {
		return universities.PageQuery{}, common.Validation("%v", err)
	}

	sortBy, ok := columnAliases[q.SortBy]
	if !ok {
		return universities.PageQuery{}, common.Validation("cannot sort by %q", q.SortBy)
	}
	pq := universities.PageQuery{
		IDs:    q.IDs,
		Search: strings.TrimSpace(q.Search),
		SortBy: sortBy,
		Desc:   q.SortOrder == "desc",
		Limit:  q.PerPage,
		Offset: (q.Page - 1) * q.PerPage,
	}
	for k, v := range q.Filters {
		c, ok := columnAliases[k]
		if !ok || !c.Filterable() {
			return universities.PageQuery{}, common.Validation("cannot filter by %q", k)
		}
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		if pq.Filters == nil {
			pq.Filters = make(map[universities.Column]string)
		}
		pq.Filters[c] = v
	}
	return pq, nil
}

// SpecialityInput is one speciality to create. Missing thresholds take the
// catalog defaults.
type SpecialityInput struct {
	Name                   string   `json:"speciality_name"`
	UniversityID           *int64   `json:"university_id"`
	NbrCandidateAcceptedIn *int     `json:"nbr_candidate_accepted_in"`
	MinBacAverage          *float64 `json:"min_bac_average"`
	MinTCFScore            *int     `json:"min_tcf_score"`
	MinAverage             *float64 `json:"min_average"`
}

const (
	defaultMinBacAverage = 10
	defaultMinTCFScore   = 300
	defaultMinAverage    = 10
)

type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *CatalogService {
	return &CatalogService{db: db, repomanager: m, log: l.With("module", "catalog")}
}

func (s *CatalogService) Universities(ctx context.Context) ([]*models.University, error) {
	list, err := s.repomanager.Universities(s.db).List(ctx)
	return list, classify("list universities", err)
}

func (s *CatalogService) University(ctx context.Context, id int64) (*models.University, error) {
	u, err := s.repomanager.Universities(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, universityLookup(err)
	}
	return u, nil
}

// UniversitiesInCity returns ErrorNotFound when the city has none.
func (s *CatalogService) UniversitiesInCity(ctx context.Context, city string) ([]*models.University, error) {
	list, err := s.repomanager.Universities(s.db).ListByCity(ctx, city)
	if err != nil {
		return nil, classify("list universities by city", err)
	}
	if len(list) == 0 {
		return nil, common.NotFound("no university found in %s", city)
	}
	return list, nil
}

// SearchUniversities returns ErrorNotFound when nothing matches.
func (s *CatalogService) SearchUniversities(ctx context.Context, name, city string) ([]*models.University, error) {
	list, err := s.repomanager.Universities(s.db).Search(ctx, strings.TrimSpace(name), strings.TrimSpace(city))
	if err != nil {
		return nil, classify("search universities", err)
	}
	if len(list) == 0 {
		return nil, common.NotFound("no university found")
	}
	return list, nil
}

func (s *CatalogService) UniversityByName(ctx context.Context, name string) (*models.University, error) {
	u, err := s.repomanager.Universities(s.db).GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if common.KindOf(err) == common.KindNotFound {
			return nil, common.NotFound("university %q not found", name)
		}
		return nil, classify("get university by name", err)
	}
	return u, nil
}

// UniversitiesByIDs returns ErrorNotFound when none of ids exists. Unknown
// ids are skipped.
func (s *CatalogService) UniversitiesByIDs(ctx context.Context, ids []int64) ([]*models.University, error) {
	if len(ids) == 0 {
		return nil, common.Validation("ids are required")
	}
	list, err := s.repomanager.Universities(s.db).FindByIDs(ctx, ids)
	if err != nil {
		return nil, classify("find universities", err)
	}
	if len(list) == 0 {
		return nil, common.NotFound("no university found for these ids")
	}
	return list, nil
}

// QueryUniversities returns ErrorNotFound when the page is empty.
func (s *CatalogService) QueryUniversities(ctx context.Context, q UniversityQuery) (*UniversityPage, error) {
	pq, err := q.pageQuery()
	if err != nil {
		return nil, err
	}
	list, total, err := s.repomanager.Universities(s.db).Page(ctx, pq)
	if err != nil {
		return nil, classify("page universities", err)
	}
	if len(list) == 0 {
		return nil, common.NotFound("no university found for these ids")
	}
	return &UniversityPage{
		Items: list,
		Total: total,
		Page:  q.Page,
		Pages: (total + q.PerPage - 1) / q.PerPage,
	}, nil
}

// CreateUniversities inserts all universities or none.
func (s *CatalogService) CreateUniversities(ctx context.Context, in []UniversityInput) ([]*models.University, error) {
	if len(in) == 0 {
		return nil, common.Validation("no university given")
	}
	for i := range in {
		in[i].Name = strings.TrimSpace(in[i].Name)
		in[i].City = strings.TrimSpace(in[i].City)
		if in[i].Name == "" || in[i].City == "" {
			return nil, common.Validation("university %d: univ_name and city are required", i)
		}
	}

	created := make([]*models.University, 0, len(in))
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Universities(tx)
		for _, u := range in {
			c, err := repo.Create(ctx, &models.University{Name: u.Name, City: u.City})
			if err != nil {
				return err
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		return nil, classify("create universities", err)
	}
	s.log.Info(ctx, "universities created", "count", len(created))
	return created, nil
}

func (s *CatalogService) UpdateUniversity(ctx context.Context, id int64, in UniversityUpdate) (*models.University, error) {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.SpecialitiesNbr, validation.Min(0)),
		validation.Field(&in.NbrCandidatesAccepted, validation.Min(0)),
	)
	if err != nil {
		return nil, common.Validation("%v", err)
	}

	var u *models.University
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Universities(tx)
		var err error
		if u, err = repo.GetByID(ctx, id); err != nil {
			return err
		}
		if in.Name != nil {
			u.Name = strings.TrimSpace(*in.Name)
		}
		if in.City != nil {
			u.City = strings.TrimSpace(*in.City)
		}
		if in.SpecialitiesNbr != nil {
			u.SpecialitiesNbr = *in.SpecialitiesNbr
		}
		if in.NbrCandidatesAccepted != nil {
			u.NbrCandidatesAccepted = *in.NbrCandidatesAccepted
		}
		if u.Name == "" || u.City == "" {
			return common.Validation("univ_name and city cannot be empty")
		}
		return repo.Update(ctx, u)
	})
	if err != nil {
		return nil, universityLookup(err)
	}
	return u, nil
}

func (s *CatalogService) DeleteUniversity(ctx context.Context, id int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Universities(tx).Delete(ctx, id)
	})
	if err != nil {
		return universityLookup(err)
	}
	s.log.Info(ctx, "university deleted", "university_id", id)
	return nil
}

func (s *CatalogService) Specialities(ctx context.Context) ([]*models.Speciality, error) {
	list, err := s.repomanager.Specialities(s.db).List(ctx)
	return list, classify("list specialities", err)
}

func (s *CatalogService) SpecialityByName(ctx context.Context, name string) (*models.Speciality, error) {
	sp, err := s.repomanager.Specialities(s.db).GetByName(ctx, name)
	if err != nil {
		if common.KindOf(err) == common.KindNotFound {
			return nil, common.NotFound("speciality %q not found", name)
		}
		return nil, classify("get speciality", err)
	}
	return sp, nil
}

// CreateSpecialities inserts all specialities or none.
func (s *CatalogService) CreateSpecialities(ctx context.Context, in []SpecialityInput) ([]*models.Speciality, error) {
	if len(in) == 0 {
		return nil, common.Validation("no speciality given")
	}
	rows := make([]*models.Speciality, 0, len(in))
	for i, it := range in {
		sp := &models.Speciality{
			Name:          strings.TrimSpace(it.Name),
			UniversityID:  it.UniversityID,
			MinBacAverage: defaultMinBacAverage,
			MinTCFScore:   defaultMinTCFScore,
			MinAverage:    defaultMinAverage,
		}
		if sp.Name == "" {
			return nil, common.Validation("speciality %d: speciality_name is required", i)
		}
		if it.NbrCandidateAcceptedIn != nil {
			sp.NbrCandidateAcceptedIn = *it.NbrCandidateAcceptedIn
		}
		if it.MinBacAverage != nil {
			sp.MinBacAverage = *it.MinBacAverage
		}
		if it.MinTCFScore != nil {
			sp.MinTCFScore = *it.MinTCFScore
		}
		if it.MinAverage != nil {
			sp.MinAverage = *it.MinAverage
		}
		err := validation.ValidateStruct(sp,
			validation.Field(&sp.NbrCandidateAcceptedIn, validation.Min(0)),
			validation.Field(&sp.MinBacAverage, validation.Min(0.0), validation.Max(20.0)),
			validation.Field(&sp.MinTCFScore, validation.Min(300), validation.Max(699)),
			validation.Field(&sp.MinAverage, validation.Min(10.0), validation.Max(20.0)),
		)
		if err != nil {
			return nil, common.Validation("speciality %d: %v", i, err)
		}
		rows = append(rows, sp)
	}

	created := make([]*models.Speciality, 0, len(rows))
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Specialities(tx)
		for _, sp := range rows {
			c, err := repo.Create(ctx, sp)
			if err != nil {
				return err
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		return nil, classify("create specialities", err)
	}
	s.log.Info(ctx, "specialities created", "count", len(created))
	return created, nil
}

func universityLookup(err error) error {
	if common.KindOf(err) == common.KindNotFound {
		return common.NotFound("university not found")
	}
	return classify("university", err)
}
