package auth

// Capability flags checked by business modules outside this core. Downstream
// authorization keys off these exact strings.
const (
	PermCompanyView   = "company.view"
	PermCompanyCreate = "company.create"
	PermCompanyManage = "company.manage"
	PermCompanyDelete = "company.delete"

	PermUserView   = "user.view"
	PermUserManage = "user.manage"

	PermAccountView   = "account.view"
	PermAccountManage = "account.manage"

	PermExportData    = "export.data"
	PermReportView    = "report.view"
	PermSettingManage = "settings.manage"
	PermDashboardView = "dashboard.view"

	PermModuleSales      = "module.sales"
	PermModulePurchases  = "module.purchases"
	PermModuleInventory  = "module.inventory"
	PermModuleAccounting = "module.accounting"
	PermModuleHR         = "module.hr"
)

// AllPermissions lists every capability flag in a stable order.
var AllPermissions = []string{
	PermCompanyView,
	PermCompanyCreate,
	PermCompanyManage,
	PermCompanyDelete,
	PermUserView,
	PermUserManage,
	PermAccountView,
	PermAccountManage,
	PermExportData,
	PermReportView,
	PermSettingManage,
	PermDashboardView,
	PermModuleSales,
	PermModulePurchases,
	PermModuleInventory,
	PermModuleAccounting,
	PermModuleHR,
}

// DefaultPermissions maps a role to its canonical capability set. Pure, no
// I/O. The sets are strict supersets going up the role ladder:
// super_admin ⊇ admin ⊇ manager ⊇ user ⊇ viewer.
//
// The mapping is not re-derived automatically on role change; callers must
// re-resolve and persist explicitly, so stale sets are possible until then.
func DefaultPermissions(role Role) []string {
	viewer := []string{
		PermCompanyView,
		PermUserView,
		PermAccountView,
		PermReportView,
		PermDashboardView,
	}
	user := extend(viewer,
		PermModuleSales,
		PermModulePurchases,
		PermModuleInventory,
		PermModuleAccounting,
	)
	manager := extend(user,
		PermAccountManage,
		PermExportData,
		PermModuleHR,
	)
	admin := extend(manager,
		PermCompanyCreate,
		PermCompanyManage,
		PermUserManage,
		PermSettingManage,
	)
	superAdmin := extend(admin,
		PermCompanyDelete,
	)

	switch role {
	case RoleSuperAdmin:
		return superAdmin
	case RoleAdmin:
		return admin
	case RoleManager:
		return manager
	case RoleUser:
		return user
	case RoleViewer:
		return viewer
	default:
		return nil
	}
}

// extend copies base before appending so role sets never alias each other.
func extend(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
