package api

import (
	"errors"
	"net/http"

	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/vault"
)

func wrapError(err error) string {
	return err.Error()
}

// httpStatus maps a ledger error to the response status code. A failed
// notary change is reported by the status of what made it fail.
func httpStatus(err error) int {
	var inconsistent *models.InconsistentNotaryError
	if errors.As(err, &inconsistent) {
		if inconsistent.Err != nil {
			if status := httpStatus(inconsistent.Err); status != http.StatusInternalServerError {
				return status
			}
		}
		return http.StatusBadRequest
	}

	switch {
	case models.IsValidationError(err):
		return http.StatusBadRequest
	case models.IsNotFoundError(err), errors.Is(err, vault.ErrTransactionNotFound):
		return http.StatusNotFound
	case models.IsAmbiguousStateError(err),
		models.IsCounterpartyRejectedError(err),
		models.IsNotarizationConflictError(err):
		return http.StatusConflict
	case models.IsAuthorizationError(err):
		return http.StatusForbidden
	case models.IsTransportError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
