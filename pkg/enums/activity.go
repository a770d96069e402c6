package enums

// ActivityAction is the verb recorded on an audit entry.
type ActivityAction string

const (
	ActivityCreate ActivityAction = "create"
	ActivityUpdate ActivityAction = "update"
	ActivityDelete ActivityAction = "delete"
)

// ProductRole tells a master row apart from a variant row.
type ProductRole string

const (
	ProductRoleMaster  ProductRole = "master_product"
	ProductRoleVariant ProductRole = "product"
)
