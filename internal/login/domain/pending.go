package domain

import "time"

// PendingLogin bridges the identifier phase to the code phase. It lives in
// the caller's session and holds nothing beyond the identifier: the code
// itself never enters session state.
type PendingLogin struct {
	Identifier string
	CreatedAt  time.Time

	// Remember asks for a long-lived token once the code checks out.
	Remember bool
}
