// Package httpapi serves a local JSON API over one stockroom session: the
// auth flows, inventory CRUD proxied through the inventory client, the
// dashboard summary and Prometheus metrics.
package httpapi
