package handler // handler defines http handlers

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the user_id set by the JWT middleware and
// converts it to uint64. JWT numeric claims decode as float64, so the
// type switch accepts every representation the middleware may store.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isRowOwner reports whether userID owns a row whose owner column holds
// rowOwner. A zero rowOwner means the row has no owner yet, which never
// grants access.
func isRowOwner(rowOwner, userID uint64) bool {
	return rowOwner != 0 && rowOwner == userID
}

// canManageReservation is the single authorization predicate for
// reservation reads and status changes: the booker may act, and so may
// the owner of the reserved space.
func canManageReservation(userID uint64, resUserID, spaceOwnerID uint64) bool {
	return resUserID == userID || isRowOwner(spaceOwnerID, userID)
}

// pathID parses a numeric path parameter, rejecting zero.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
