// Package storage persists the accepted subscriber set.
//
// It is the exclusive owner of that set's durability: every other component
// goes through Add/Remove/List and never caches subscriber IDs beyond a
// single operation.
package storage
