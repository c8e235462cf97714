package domain

import "time"

type FeeCategory string

const (
	CategoryTuition    FeeCategory = "TUITION"
	CategoryTransport  FeeCategory = "TRANSPORT"
	CategoryBoarding   FeeCategory = "BOARDING"
	CategoryExam       FeeCategory = "EXAM"
	CategoryActivity   FeeCategory = "ACTIVITY"
	CategoryLibrary    FeeCategory = "LIBRARY"
	CategoryLaboratory FeeCategory = "LABORATORY"
	CategoryUniform    FeeCategory = "UNIFORM"
	CategoryBooks      FeeCategory = "BOOKS"
	CategoryOther      FeeCategory = "OTHER"
)

func (c FeeCategory) Valid() bool {
	switch c {
	case CategoryTuition, CategoryTransport, CategoryBoarding, CategoryExam,
		CategoryActivity, CategoryLibrary, CategoryLaboratory, CategoryUniform,
		CategoryBooks, CategoryOther:
		return true
	}
	return false
}

type Term string

const (
	Term1      Term = "TERM_1"
	Term2      Term = "TERM_2"
	Term3      Term = "TERM_3"
	TermAnnual Term = "ANNUAL"
)

func (t Term) Valid() bool {
	switch t {
	case Term1, Term2, Term3, TermAnnual:
		return true
	}
	return false
}

// Fee is a billable line item in the catalog. Amounts are stored in minor
// currency units (e.g. ngwee), never floats.
type Fee struct {
	ID           int64
	Category     FeeCategory
	Name         string
	AmountMinor  int64
	AcademicYear string
	Term         Term
	Description  *string
	Mandatory    bool
	Active       bool

	// classes the fee applies to, resolved at assignment time
	ApplicableClassIDs []int64

	CreatedAt *time.Time
	UpdatedAt *time.Time
}
