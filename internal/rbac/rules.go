package rbac

// Simple default policy. Expand as needed. Course-scoped ownership and
// enrollment checks live in the Authorizer, not here.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"course:view",
		"enrollment:create",
		"lesson:complete",
		"exam:view",
		"attempt:create",
		"attempt:view-own",
		"user:change_password",
	},
	RoleTeacher: {
		"course:create",
		"course:view",
		"lesson:create",
		"exam:create",
		"exam:view",
		"prerequisite:create",
		"attempt:view-all",
		"attempt:grade",
		"users:bulk_upsert",
		"users:list",
	},
	RoleAdmin: {
		"*", // everything
	},
}
