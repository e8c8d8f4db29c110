package executor

import "orbit-station/internal/apierr"

// validateLenInline mirrors model's unexported validateLen for the handful
// of executor-level string bounds checks that aren't already covered by an
// entity's own Validate method (e.g. an operation's raw input fields before
// they're assembled into an entity).
func validateLenInline(field, value string, min, max int) error {
	if len(value) < min || len(value) > max {
		return apierr.Newf(apierr.Validation, "%s must be %d..%d characters, got %d", field, min, max, len(value))
	}
	return nil
}
