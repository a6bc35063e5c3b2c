// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthAccountSuspended   = "auth.account_suspended"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthLogoutSuccess      = "auth.logout_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAuthPasswordChanged    = "auth.password_changed"
	KeyAuthResetRequested     = "auth.reset_requested"
	KeyAuthPasswordReset      = "auth.password_reset"
	KeyAuthInvalidResetToken  = "auth.invalid_reset_token"
	KeyUserAccountDeleted     = "user.account_deleted"

	// User Management
	KeyUserProfileUpdated = "user.profile_updated"
	KeyUserNotFound       = "user.not_found"

	// Licenses
	KeyLicenseNotFound          = "license.not_found"
	KeyLicenseActivated         = "license.activated"
	KeyLicenseDeactivated       = "license.deactivated"
	KeyLicenseDeviceAdded       = "license.device_added"
	KeyLicenseAlreadyActivated  = "license.already_activated"
	KeyLicenseSystemActive      = "license.system_already_activated"
	KeyLicenseKeyBoundElsewhere = "license.key_bound_elsewhere"
	KeyLicenseKeyMismatch       = "license.key_mismatch"
	KeyLicenseExpired           = "license.license_expired"
	KeyLicenseDuplicateDevice   = "license.duplicate_device"
	KeyLicenseDuplicateKey      = "license.duplicate_key"
	KeyLicenseNotActivated      = "license.not_activated"

	// Products
	KeyProductCreated  = "product.created"
	KeyProductUpdated  = "product.updated"
	KeyProductArchived = "product.archived"
	KeyProductNotFound = "product.not_found"
	KeySlugTaken       = "content.slug_taken"

	// Orders
	KeyOrderCreated           = "order.created"
	KeyOrderNotFound          = "order.not_found"
	KeyOrderCancelled         = "order.cancelled"
	KeyOrderRefunded          = "order.refunded"
	KeyOrderInvalidTransition = "order.invalid_transition"
	KeyPaymentDeclined        = "order.payment_declined"

	// Content
	KeyPageNotFound = "page.not_found"
	KeyPageSaved    = "page.saved"
	KeyPageDeleted  = "page.deleted"

	// Admin
	KeyAdminActionSuccess   = "admin.action_success"
	KeyAdminAccessDenied    = "admin.access_denied"
	KeyAdminSettingsUpdated = "admin.settings_updated"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
	KeyFileTooLarge      = "file.too_large"

	// Rate limiting
	KeyRateLimited = "rate.limited"
)
