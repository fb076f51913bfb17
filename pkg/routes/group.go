// Package routes declares handler routes as nested groups and registers them
// on a ServeMux.
package routes

import (
	"fmt"
	"net/http"
)

// Group organizes routes under a common prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux. A pattern that
// conflicts with one already registered is reported as an error.
func Register(mux *http.ServeMux, groups ...Group) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("register routes: %v", p)
		}
	}()

	for _, group := range groups {
		walk(group, "", func(pattern string, h http.HandlerFunc) {
			mux.HandleFunc(pattern, h)
		})
	}
	return nil
}

// Patterns lists the full patterns of the given groups in registration order.
func Patterns(groups ...Group) []string {
	var out []string
	for _, group := range groups {
		walk(group, "", func(pattern string, _ http.HandlerFunc) {
			out = append(out, pattern)
		})
	}
	return out
}

func walk(group Group, parent string, fn func(pattern string, h http.HandlerFunc)) {
	prefix := parent + group.Prefix
	for _, route := range group.Routes {
		fn(route.pattern(prefix), route.Handler)
	}
	for _, child := range group.Children {
		walk(child, prefix, fn)
	}
}
