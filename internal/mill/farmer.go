package mill

// Farmer is the delivering partner view the engine needs. Sub-contacts carry
// the id of their parent account and cannot borrow equipment themselves.
type Farmer struct {
	ID          int64
	Name        string
	ParentID    int64
	CultureType CultureType
	// LendedRegularCases and LendedOrganicCases are the small harvest cases
	// currently lent to the farmer.
	LendedRegularCases int
	LendedOrganicCases int
}

// SubContact reports whether the farmer is attached to a parent account.
func (f Farmer) SubContact() bool { return f.ParentID != 0 }
