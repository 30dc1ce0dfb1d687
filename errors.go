package observe

import (
	"github.com/zeebo/errs"
)

// Error is the class of all telemetry-internal failures: initialization
// problems, backend call errors, and guard-trapped panics. Application
// errors from wrapped functions are never wrapped in this class.
var Error = errs.Class("telemetry")
