package routes

import "fmt"

const apiVersion = "v0"

// Version returns the API version string used in routing (e.g., "v0").
func Version() string {
	return apiVersion
}

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return fmt.Sprintf("/api/%s", Version())
}

func buildResourceRoute(resource string) string {
	return Base() + "/" + resource
}

// Books returns the books collection path (e.g., "/api/v0/books").
func Books() string { return buildResourceRoute("books") }

// Workloads returns the workloads base path (e.g., "/api/v0/workloads").
func Workloads() string { return buildResourceRoute("workloads") }

// HealthVersioned returns the versioned health path (e.g., "/api/v0/health").
func HealthVersioned() string {
	return Base() + "/health"
}
