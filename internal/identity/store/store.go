// Package store persists registry profiles.
//
// Error contract: every implementation returns sentinel.ErrNotFound for an
// unknown principal and sentinel.ErrAlreadyUsed when Create finds an
// existing profile. Validate errors from Execute pass through unchanged.
package store

import (
	"credreg/internal/identity/models"
	id "credreg/pkg/domain"
)

// RoleCounts is the number of profiles per role.
type RoleCounts map[id.Role]int

func clone(u *models.User) *models.User {
	c := *u
	return &c
}
