package services

import (
	"errors"
	"fmt"
)

var (
	ErrNoOfflineData           = errors.New("no data available offline yet")
	ErrUsersSyncFailed         = errors.New("user profile could not be synchronized")
	ErrStaleSelection          = errors.New("selected baby no longer exists")
	ErrUnknownBaby             = errors.New("unknown baby")
	ErrAppointmentNotDeletable = errors.New("appointment can no longer be deleted")
)

// SyncCollectionError reports one collection that could not be refreshed.
// Its cached value was left untouched.
type SyncCollectionError struct {
	Collection string
	Err        error
}

func (e *SyncCollectionError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Collection, e.Err)
}

func (e *SyncCollectionError) Unwrap() error { return e.Err }
