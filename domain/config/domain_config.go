package config

// DomainConfig holds all configurable mind-map rules and reconciler tunables
type DomainConfig struct {
	// Graph constraints
	MaxNodesPerGraph int
	MaxEdgesPerGraph int
	MaxLabelLength   int
	MaxDescLength    int

	// RootMarker is the proposal-local id a model uses to address the goal node
	RootMarker string

	// Anchor scoring. The threshold and weights are heuristics tuned against
	// small in-browser models; they are not precise semantics.
	AnchorThreshold      float64
	MinTokenLength       int
	PartialMatchLength   int
	PartialMatchCredit   float64
	ConversationWindow   int
	TrustRootParentRefs  bool
	MaxSuggestionLength  int
	FallbackAssistantMsg string

	// Placement
	PlacementRadius float64
	DuplicateOffset float64
	CopySuffix      string
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerGraph: 2000,
		MaxEdgesPerGraph: 10000,
		MaxLabelLength:   200,
		MaxDescLength:    5000,

		RootMarker: "root",

		AnchorThreshold:      0.35,
		MinTokenLength:       3,
		PartialMatchLength:   4,
		PartialMatchCredit:   0.5,
		ConversationWindow:   6,
		TrustRootParentRefs:  false,
		MaxSuggestionLength:  100,
		FallbackAssistantMsg: "What would you like to explore?",

		PlacementRadius: 250,
		DuplicateOffset: 40,
		CopySuffix:      " (copy)",
	}
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// More permissive for development
	config.MaxNodesPerGraph = 100000
	config.MaxEdgesPerGraph = 500000

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// OrDefault returns cfg, or the default configuration when cfg is nil
func OrDefault(cfg *DomainConfig) *DomainConfig {
	if cfg == nil {
		return DefaultDomainConfig()
	}
	return cfg
}
