package domain

// Student and SchoolClass are read-only projections of the academic records
// subsystem. The billing core never writes back into them.
type Student struct {
	ID        int64
	StudentNo string
	FullName  string
	ClassID   *int64
}

type SchoolClass struct {
	ID    int64
	Name  string
	Grade string
}
