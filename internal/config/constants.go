package config

const (
	// DefaultDatabasePath is the default path for the library database
	DefaultDatabasePath = "./hardcover-sync.db"

	// DefaultAPIURL is the Hardcover GraphQL endpoint
	DefaultAPIURL = "https://api.hardcover.app/v1/graphql"

	// DefaultReviewMaxLen is the assumed maximum review length accepted by
	// Hardcover. Not published by the API; overridable via
	// HARDCOVER_REVIEW_MAX_LEN.
	DefaultReviewMaxLen = 10000
)
