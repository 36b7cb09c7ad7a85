// Package service provides the business logic layer for the lending
// catalog, loans, and authentication.
package service

import (
	"github.com/circulateapp/circulate-server/internal/validation"
)

// validate is a shared validator instance for request validation.
var validate = validation.New()
