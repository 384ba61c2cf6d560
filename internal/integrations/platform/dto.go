package platform

import "time"

// Typed shapes for the recruitment platform endpoints this service consumes.
// Responses are decoded into these at the boundary; a record that fails to
// parse fails the request.

// Candidate is one record from GET /candidates.
type Candidate struct {
	CandidateID int64      `json:"candidateId"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       string     `json:"phone"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// FullName joins the candidate's name parts.
func (c Candidate) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// CandidatePage is the paged envelope for candidate listings.
type CandidatePage struct {
	Items      []Candidate `json:"items"`
	TotalCount int64       `json:"totalCount"`
}

// DatedItem is the common shape of the per-candidate activity endpoints
// (applications, placements, activities, notes): only createdAt matters to
// the eligibility gate.
type DatedItem struct {
	CreatedAt *time.Time `json:"createdAt"`
}

// DatedPage is the paged envelope for DatedItem listings.
type DatedPage struct {
	Items []DatedItem `json:"items"`
}

// Dates flattens the page to its non-nil creation times.
func (p DatedPage) Dates() []time.Time {
	out := make([]time.Time, 0, len(p.Items))
	for _, item := range p.Items {
		if item.CreatedAt != nil {
			out = append(out, *item.CreatedAt)
		}
	}
	return out
}

// Placement is one record from GET /placements.
type Placement struct {
	PlacementID int64      `json:"placementId"`
	CompanyID   int64      `json:"companyId"`
	JobTitle    string     `json:"jobTitle"`
	CreatedAt   *time.Time `json:"createdAt"`
}

// PlacementPage is the paged envelope for placement listings.
type PlacementPage struct {
	Items      []Placement `json:"items"`
	TotalCount int64       `json:"totalCount"`
}

// Contact is a company's main contact from GET /companies/{id}/maincontact.
type Contact struct {
	ContactID    int64  `json:"contactId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Unsubscribed bool   `json:"unsubscribed"`
}

// Company is one record from GET /companies/{id}.
type Company struct {
	CompanyID int64  `json:"companyId"`
	Name      string `json:"name"`
}
