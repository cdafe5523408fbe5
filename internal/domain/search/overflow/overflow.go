package overflow

// Policy decides what happens when the fact-layout facet join collects
// more candidate entities than the join clause bound allows.
type Policy string

// Overflow policy constants.
const (
	// Fail rejects the request. The caller narrows the filter or
	// switches the document model.
	Fail Policy = "fail"
	// Partial caps the candidates to the top-ranked entities and marks
	// the result partial. Truncation is never silent.
	Partial Policy = "partial"
)

// Default is the policy used when none is configured.
const Default = Fail

// IsValid checks if the policy is one of the supported values.
func (p Policy) IsValid() bool {
	return p == Fail || p == Partial
}

// String returns the policy name.
func (p Policy) String() string { return string(p) }
