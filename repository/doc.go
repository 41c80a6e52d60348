// Package repository provides persistent stockroom.SessionCache
// implementations: a bun backed SQL table and a Redis key.
package repository
