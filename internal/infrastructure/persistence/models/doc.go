// Package models contains the GORM persistence models of the order store.
// Domain types stay free of ORM tags; each model converts to and from its
// domain counterpart.
package models
