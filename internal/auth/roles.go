package auth

import "context"

type Role string

const (
	RolePromoter  Role = "promoter"
	RoleInventory Role = "inventory"
	RoleCashier   Role = "cashier"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	switch r {
	case RolePromoter, RoleInventory, RoleCashier, RoleAdmin:
		return r, true
	}
	return "", false
}

type Action string

const (
	ActionOrderCreate   Action = "order.create"
	ActionOrderEdit     Action = "order.edit"
	ActionOrderCancel   Action = "order.cancel"
	ActionOrderPay      Action = "order.pay"
	ActionOrderProofs   Action = "order.proofs"
	ActionEndOfDay      Action = "order.end_of_day"
	ActionProductManage Action = "product.manage"
	ActionRead          Action = "read"
)

// capabilities adalah satu-satunya tabel role -> aksi.
var capabilities = map[Role]map[Action]bool{
	RolePromoter: {
		ActionRead: true, ActionOrderCreate: true, ActionOrderEdit: true,
	},
	RoleInventory: {
		ActionRead: true, ActionProductManage: true,
	},
	RoleCashier: {
		ActionRead: true, ActionOrderEdit: true, ActionOrderCancel: true,
		ActionOrderPay: true, ActionOrderProofs: true, ActionEndOfDay: true,
	},
	RoleAdmin: {
		ActionRead: true, ActionOrderCreate: true, ActionOrderEdit: true, ActionOrderCancel: true,
		ActionOrderPay: true, ActionOrderProofs: true, ActionEndOfDay: true, ActionProductManage: true,
	},
}

func Can(r Role, a Action) bool {
	return capabilities[r][a]
}

// Principal is the authenticated caller.
type Principal struct {
	Actor string `json:"username"`
	Role  Role   `json:"role"`
}

// System is the principal for events the service records on its own behalf.
var System = Principal{Actor: "system", Role: RoleSystem}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
