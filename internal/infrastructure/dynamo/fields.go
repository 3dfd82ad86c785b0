package dynamo

// DynamoDB attribute and index names shared across repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	attrPrincipalID   = "principal_id"
	attrEmail         = "email"
	attrContact       = "contact"
	attrUsername      = "username"
	attrStateID       = "state_id"
	attrUpdatedAt     = "updated_at"
	attrScope         = "scope"
	attrCodeID        = "code_id"
	attrCode          = "code"
	attrUsed          = "used"
	attrExpiresAt     = "expires_at"
	attrVersion       = "version"
	attrRoleID        = "role_id"
	attrName          = "name"
	attrAssignmentID  = "assignment_id"
	attrIdentifierID  = "identifier_id"
	attrAccountTypeID = "account_type_id"
	attrCounterName   = "counter_name"
	attrCounterValue  = "counter_value"
	attrUniqueKey     = "unique_key"
	attrTTL           = "ttl"

	indexEmail       = "email-index"
	indexContact     = "contact-index"
	indexUsername    = "username-index"
	indexRoleName    = "name-index"
	indexPrincipalID = "principal_id-index"

	// otpHeadSK is the sort key of the per-scope version item. '#' sorts
	// before every ULID character, so the head is always first in a scope.
	otpHeadSK = "#HEAD"
)
