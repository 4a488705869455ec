package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
)

// Route names registered on the HTTP router.
const (
	RouteHealth          = "Health"
	RouteQuotePrice      = "QuotePrice"
	RouteCreateBooking   = "CreateBooking"
	RouteGetBooking      = "GetBooking"
	RouteConfirmBooking  = "ConfirmBooking"
	RouteApproveBooking  = "ApproveBooking"
	RouteRejectBooking   = "RejectBooking"
	RouteCompleteBooking = "CompleteBooking"
	RouteCancelBooking   = "CancelBooking"
)

// EndpointSecurityConfig maps route names to their required security level.
// Role checks (owner vs customer) are enforced by the booking state machine.
var EndpointSecurityConfig = map[string]SecurityLevel{
	RouteHealth:     SecurityPublic,
	RouteQuotePrice: SecurityPublic,

	RouteCreateBooking:   SecurityAccess,
	RouteGetBooking:      SecurityAccess,
	RouteConfirmBooking:  SecurityAccess,
	RouteApproveBooking:  SecurityAccess,
	RouteRejectBooking:   SecurityAccess,
	RouteCompleteBooking: SecurityAccess,
	RouteCancelBooking:   SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
