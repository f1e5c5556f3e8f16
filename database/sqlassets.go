package sqlassets

import _ "embed"

// OrganizationsSQL creates the registry table in the master database.
//
//go:embed schema/platform/organizations.sql
var OrganizationsSQL string

// OrgUsersSQL creates the principal table inside every organization database.
//
//go:embed schema/org_space/users.sql
var OrgUsersSQL string
