// Package roles defines the closed set of staff roles across the four
// administrative tiers of the supply chain (central purchasing agency,
// regions, prefectures, point-of-care structures), together with the
// per-tier groupings used to gate workflow transitions.
package roles

// Role identifies a staff role. The set is closed: free-form role strings
// are rejected at the boundary so a typo in a role list cannot silently
// widen or narrow an authorization check.
type Role string

const (
	// National tier (central purchasing agency)
	NationalAdmin        Role = "national_admin"
	NationalDirector     Role = "national_director"
	NationalPurchasing   Role = "national_purchasing"
	NationalStock        Role = "national_stock"
	NationalDistribution Role = "national_distribution"
	NationalCourier      Role = "national_courier"

	// Regional tier
	RegionalAdmin    Role = "regional_admin"
	RegionalDirector Role = "regional_director"
	RegionalCourier  Role = "regional_courier"

	// Prefectoral tier
	PrefectoralAdmin    Role = "prefectoral_admin"
	PrefectoralDirector Role = "prefectoral_director"

	// Peripheral tier (point-of-care structures)
	PeripheralAgent Role = "peripheral_agent"
)

// All lists every known role.
var All = []Role{
	NationalAdmin, NationalDirector, NationalPurchasing,
	NationalStock, NationalDistribution, NationalCourier,
	RegionalAdmin, RegionalDirector, RegionalCourier,
	PrefectoralAdmin, PrefectoralDirector,
	PeripheralAgent,
}

// Groupings used by the order workflow transition table.
var (
	// PrefectureValidators may validate a submitted order at prefecture level.
	PrefectureValidators = []Role{PrefectoralAdmin, PrefectoralDirector}

	// RegionValidators may validate at region level.
	RegionValidators = []Role{RegionalAdmin, RegionalDirector}

	// CentralApprovers may approve an order at the central agency.
	CentralApprovers = []Role{NationalAdmin, NationalDirector, NationalPurchasing}

	// CentralPreparers may move an approved order into preparation.
	CentralPreparers = []Role{NationalStock, NationalDistribution}

	// Shippers may mark a prepared order as shipped.
	Shippers = []Role{NationalDistribution, NationalCourier, RegionalCourier}

	// NationalRoles covers every central-agency role; holders act on any
	// entity's stock regardless of scope.
	NationalRoles = []Role{
		NationalAdmin, NationalDirector, NationalPurchasing,
		NationalStock, NationalDistribution, NationalCourier,
	}
)

// Valid reports whether r belongs to the closed role set.
func Valid(r Role) bool {
	for _, known := range All {
		if r == known {
			return true
		}
	}
	return false
}

// Contains reports whether set contains r.
func Contains(set []Role, r Role) bool {
	for _, member := range set {
		if member == r {
			return true
		}
	}
	return false
}

// IsNational reports whether r is a central-agency role.
func IsNational(r Role) bool {
	return Contains(NationalRoles, r)
}
