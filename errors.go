package jsbridge

import (
	"github.com/cryguy/jsbridge/errors"
)

// Sentinels for errors.Is. They match by kind, whatever the phase.
var (
	ErrAllocationFailed       = &errors.Error{Kind: errors.KindAllocation}
	ErrRootRegistrationFailed = &errors.Error{Kind: errors.KindRootRegistration}
	ErrUseAfterDispose        = &errors.Error{Kind: errors.KindUseAfterDispose}
	ErrScopeOrder             = &errors.Error{Kind: errors.KindScopeOrder}
	ErrEvaluation             = &errors.Error{Kind: errors.KindEvaluation}
	ErrDuplicateContext       = &errors.Error{Kind: errors.KindDuplicateContext}
	ErrInvalidState           = &errors.Error{Kind: errors.KindInvalidState}
	ErrTypeMismatch           = &errors.Error{Kind: errors.KindTypeMismatch}
	ErrOperationFailed        = &errors.Error{Kind: errors.KindOperationFailed}
	ErrStale                  = &errors.Error{Kind: errors.KindStale}
	ErrNotFound               = &errors.Error{Kind: errors.KindNotFound}
	ErrInvalidInput           = &errors.Error{Kind: errors.KindInvalidInput}
)
