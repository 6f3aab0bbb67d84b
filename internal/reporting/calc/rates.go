package calc

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RateSource tells where an effective rate came from.
type RateSource string

const (
	RateSourceUser   RateSource = "user"
	RateSourceTenant RateSource = "tenant"
	RateSourceSystem RateSource = "system"
)

// RateResolver picks the effective hourly rate of a user: the user's own rate,
// then the tenant default, then the system default. Unset and non-positive
// rates fall through to the next level.
type RateResolver struct {
	system decimal.Decimal
	tenant *decimal.Decimal
	users  map[snowflake.ID]*decimal.Decimal
}

func NewRateResolver(system decimal.Decimal, tenantDefault *decimal.Decimal, userRates map[snowflake.ID]*decimal.Decimal) RateResolver {
	users := make(map[snowflake.ID]*decimal.Decimal, len(userRates))
	for id, rate := range userRates {
		if usable(rate) {
			r := *rate
			users[id] = &r
		}
	}
	var tenant *decimal.Decimal
	if usable(tenantDefault) {
		r := *tenantDefault
		tenant = &r
	}
	return RateResolver{system: system, tenant: tenant, users: users}
}

func usable(rate *decimal.Decimal) bool {
	return rate != nil && rate.IsPositive()
}

// Rate returns the effective hourly rate of userID.
func (r RateResolver) Rate(userID snowflake.ID) decimal.Decimal {
	rate, _ := r.Resolve(userID)
	return rate
}

func (r RateResolver) Resolve(userID snowflake.ID) (decimal.Decimal, RateSource) {
	if rate, ok := r.users[userID]; ok {
		return *rate, RateSourceUser
	}
	if r.tenant != nil {
		return *r.tenant, RateSourceTenant
	}
	return r.system, RateSourceSystem
}
