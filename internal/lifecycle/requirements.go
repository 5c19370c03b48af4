package lifecycle

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
)

// AnyVariant matches documents whose variant has no dedicated row.
const AnyVariant = "*"

// Rules holds the signature requirement table and the signer roles each kind accepts.
// Requirements is keyed kind -> target state -> variant -> roles.
type Rules struct {
	Requirements map[domain.Kind]map[domain.State]map[string][]string
	Roles        map[domain.Kind][]string
}

func DefaultRules() Rules {
	return Rules{
		Requirements: map[domain.Kind]map[domain.State]map[string][]string{
			domain.KindPurchase: {
				domain.StateCompleted: {
					AnyVariant:             {domain.RoleEncargado, domain.RoleProveedor},
					domain.PurchaseParcela: {domain.RoleConductor, domain.RoleEncargado, domain.RoleProveedor},
				},
			},
			domain.KindSale: {
				domain.StateDelivered: {
					domain.DeliveryPickup: {domain.RoleCliente},
				},
			},
		},
		Roles: map[domain.Kind][]string{
			domain.KindSale:     {domain.RoleCliente, domain.RoleConductor},
			domain.KindPurchase: {domain.RoleConductor, domain.RoleEncargado, domain.RoleProveedor},
			domain.KindTransfer: {domain.RoleEncargado, domain.RoleConductor},
		},
	}
}

// RequiredRoles returns the sorted roles that must have signed doc before it
// may enter target. An exact variant row wins over AnyVariant.
func (r Rules) RequiredRoles(doc domain.Document, target domain.State) []string {
	byVariant, ok := r.Requirements[doc.Kind][target]
	if !ok {
		return nil
	}
	roles, ok := byVariant[doc.Variant()]
	if !ok {
		roles = byVariant[AnyVariant]
	}
	set := mapset.NewThreadUnsafeSet[string](roles...)
	out := set.ToSlice()
	sort.Strings(out)
	return out
}

// RoleAllowed reports whether role may sign documents of kind. A kind with no
// configured role list accepts any non-empty role.
func (r Rules) RoleAllowed(kind domain.Kind, role string) bool {
	if role == "" {
		return false
	}
	allowed, ok := r.Roles[kind]
	if !ok {
		return true
	}
	return mapset.NewThreadUnsafeSet[string](allowed...).Contains(role)
}

// missingRoles returns required minus present, sorted.
func missingRoles(required []string, present map[string]domain.Signature) []string {
	need := mapset.NewThreadUnsafeSet[string](required...)
	have := mapset.NewThreadUnsafeSet[string]()
	for role := range present {
		have.Add(role)
	}
	out := need.Difference(have).ToSlice()
	sort.Strings(out)
	return out
}
