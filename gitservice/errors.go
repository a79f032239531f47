/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitservice

import (
	"fmt"
	"net/http"
)

// WrapStatus wraps err with the sentinel matching an HTTP status code.
// Codes without a sentinel return err unchanged.
func WrapStatus(code int, err error) error {
	if err == nil {
		return nil
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}
