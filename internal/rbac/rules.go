package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"sheet:view-own",
	},
	"teacher": {
		"exam:create",
		"exam:view",
		"sheet:upload",
		"sheet:view-all",
		"grading:start",
		"grading:status",
		"review:list",
		"review:approve",
		"review:override",
		"calibration:run",
		"training:run",
		"models:list",
		"samples:upload",
	},
	"admin": {
		"*", // everything
	},
}
