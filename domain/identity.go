// Package domain contains core concepts of the relay system.
// This file defines identity types shared by every component.
// No runtime, network, or UI logic should be added here.
package domain

// UserID is the opaque stable identifier of an account holder.
// Accounts themselves are owned by an external service.
type UserID string

// GroupID identifies a conversation group.
type GroupID string
