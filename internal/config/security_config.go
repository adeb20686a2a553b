// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityRefresh                      // Refresh token required
	SecurityAccess                       // Access token required
	SecurityStaff                        // Access token with staff or admin role
	SecurityAdmin                        // Access token with admin role
)

// EndpointSecurityConfig maps "METHOD route-template" keys to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health - Public
	"GET /healthz": SecurityPublic,

	// gRPC health - Public
	"/grpc.health.v1.Health/Check": SecurityPublic,
	"/grpc.health.v1.Health/Watch": SecurityPublic,

	// gRPC reflection - staff tooling
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo":      SecurityStaff,
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo": SecurityStaff,

	// Auth
	"POST /api/v1/auth/login":   SecurityPublic,
	"POST /api/v1/auth/refresh": SecurityRefresh,

	// Loans - any signed-in user may request, desk staff drive the lifecycle
	"POST /api/v1/loans":               SecurityAccess,
	"GET /api/v1/loans":                SecurityStaff,
	"GET /api/v1/loans/{id}":           SecurityStaff,
	"GET /api/v1/loans/{id}/overdue":   SecurityStaff,
	"POST /api/v1/loans/{id}/approve":  SecurityStaff,
	"POST /api/v1/loans/{id}/reject":   SecurityStaff,
	"POST /api/v1/loans/{id}/activate": SecurityStaff,
	"POST /api/v1/loans/{id}/cancel":   SecurityStaff,
	"POST /api/v1/loans/{id}/return":   SecurityStaff,
	"POST /api/v1/loans/{id}/lost":     SecurityStaff,

	// Items
	"GET /api/v1/items":      SecurityAccess,
	"GET /api/v1/items/{id}": SecurityAccess,
	"POST /api/v1/items":     SecurityStaff,

	// Sanctions
	"GET /api/v1/sanctions":               SecurityStaff,
	"POST /api/v1/sanctions/{id}/fulfill": SecurityStaff,
	"POST /api/v1/sanctions/{id}/forgive": SecurityStaff,

	// Audit
	"GET /api/v1/audit": SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given endpoint key
func GetSecurityLevel(endpoint string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[endpoint]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
