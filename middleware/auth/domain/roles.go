package domain

const (
	RoleAdmin    = "admin"
	RoleVendor   = "vendor"
	RoleCustomer = "customer"
)

var roleRank = map[string]int{
	RoleAdmin:    3,
	RoleVendor:   2,
	RoleCustomer: 1,
}

// HasPermission compara roles pela hierarquia admin > vendor > customer.
// Role desconhecida vale 0.
//
// É uma checagem de capacidade para handlers; o gate (RoleRequired) usa
// igualdade exata e não passa por aqui.
func HasPermission(userRole, requiredRole string) bool {
	return roleRank[userRole] >= roleRank[requiredRole]
}
