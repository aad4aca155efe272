package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"attempt:start",
		"attempt:resume",
		"attempt:answer",
		"attempt:end",
		"attempt:view-own",
		"quiz:view",
	},
	"teacher": {
		"quiz:view",
		"attempt:view-own",
		"attempt:view-all",
		"attempt:grade",
	},
	"admin": {
		"*", // everything
	},
}
