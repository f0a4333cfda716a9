package naming

// =============================================================================
// Availability
// =============================================================================

// Status is the outcome of an availability check.
type Status string

const (
	StatusInvalid       Status = "invalid"
	StatusReserved      Status = "reserved"
	StatusTaken         Status = "taken"
	StatusAvailableOwn  Status = "available_own"
	StatusAvailableFree Status = "available_free"
)

// Availability is the advisory answer to "can this project use this name?".
// It is never a lock; the claim made at publish time is authoritative.
type Availability struct {
	Status Status  `json:"status"`
	Name   string  `json:"name,omitempty"`
	Reason Problem `json:"reason,omitempty"`
}

// Available returns true for both available statuses.
func (a Availability) Available() bool {
	return a.Status == StatusAvailableOwn || a.Status == StatusAvailableFree
}

// Holder describes who currently holds a normalized name.
// An empty ProjectID means nobody holds it.
type Holder struct {
	ProjectID string
	// CoolingDown is set when the name was released recently and is held
	// back from projects other than ProjectID.
	CoolingDown bool
}

// Precheck runs the storage-free part of the availability check.
// It returns the candidate and, when the answer is already known (invalid or
// reserved), the final Availability with done set to true.
func Precheck(raw string, policy *Policy) (c Candidate, a Availability, done bool) {
	c = policy.Normalize(raw)
	if !c.Usable() {
		return c, Availability{Status: StatusInvalid, Name: c.Name, Reason: c.Problem}, true
	}
	if policy.IsReserved(c.Name) {
		return c, Availability{Status: StatusReserved, Name: c.Name}, true
	}
	return c, Availability{}, false
}

// Classify answers availability for a usable, non-reserved candidate given
// the current holder of the name and the requesting project.
func Classify(name string, holder Holder, requestingProjectID string) Availability {
	switch {
	case holder.ProjectID == "":
		return Availability{Status: StatusAvailableFree, Name: name}
	case holder.ProjectID == requestingProjectID:
		if holder.CoolingDown {
			// Released by the requester itself; nobody else holds it.
			return Availability{Status: StatusAvailableFree, Name: name}
		}
		return Availability{Status: StatusAvailableOwn, Name: name}
	default:
		return Availability{Status: StatusTaken, Name: name}
	}
}
