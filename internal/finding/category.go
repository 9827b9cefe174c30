package finding

import "fmt"

// Category is a STRIDE threat category.
type Category string

const (
	// CategorySpoofing covers impersonation of a user, process or host.
	CategorySpoofing Category = "Spoofing"

	// CategoryTampering covers unauthorized modification of data in transit or at rest.
	CategoryTampering Category = "Tampering"

	// CategoryRepudiation covers actions that cannot be attributed to an actor.
	CategoryRepudiation Category = "Repudiation"

	// CategoryInformationDisclosure covers exposure of data to unauthorized parties.
	CategoryInformationDisclosure Category = "InformationDisclosure"

	// CategoryDenialOfService covers degradation or loss of availability.
	CategoryDenialOfService Category = "DenialOfService"

	// CategoryElevationOfPrivilege covers gaining capabilities without authorization.
	CategoryElevationOfPrivilege Category = "ElevationOfPrivilege"
)

// IsValid returns true if the category is one of the six STRIDE categories.
func (c Category) IsValid() bool {
	switch c {
	case CategorySpoofing,
		CategoryTampering,
		CategoryRepudiation,
		CategoryInformationDisclosure,
		CategoryDenialOfService,
		CategoryElevationOfPrivilege:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the category.
func (c Category) DisplayName() string {
	switch c {
	case CategoryInformationDisclosure:
		return "Information Disclosure"
	case CategoryDenialOfService:
		return "Denial of Service"
	case CategoryElevationOfPrivilege:
		return "Elevation of Privilege"
	default:
		return string(c)
	}
}

// Letter returns the STRIDE mnemonic letter for the category.
func (c Category) Letter() string {
	switch c {
	case CategorySpoofing:
		return "S"
	case CategoryTampering:
		return "T"
	case CategoryRepudiation:
		return "R"
	case CategoryInformationDisclosure:
		return "I"
	case CategoryDenialOfService:
		return "D"
	case CategoryElevationOfPrivilege:
		return "E"
	default:
		return "?"
	}
}

// Rank returns the position of c in STRIDE order. Invalid categories rank last.
func (c Category) Rank() int {
	for i, cat := range AllCategories() {
		if cat == c {
			return i
		}
	}
	return len(AllCategories())
}

// ParseCategory parses a string into a Category value.
func ParseCategory(s string) (Category, error) {
	category := Category(s)
	if !category.IsValid() {
		return "", fmt.Errorf("invalid category: %s", s)
	}
	return category, nil
}

// AllCategories returns the categories in STRIDE order.
func AllCategories() []Category {
	return []Category{
		CategorySpoofing,
		CategoryTampering,
		CategoryRepudiation,
		CategoryInformationDisclosure,
		CategoryDenialOfService,
		CategoryElevationOfPrivilege,
	}
}
