package resolution

// ConsolidationMethod selects how fused relationship confidences are computed.
type ConsolidationMethod string

const (
	ConsolidationMax      ConsolidationMethod = "max"
	ConsolidationAverage  ConsolidationMethod = "average"
	ConsolidationWeighted ConsolidationMethod = "weighted"
)

// IsValid reports whether m is one of the closed set of consolidation methods.
func (m ConsolidationMethod) IsValid() bool {
	switch m {
	case ConsolidationMax, ConsolidationAverage, ConsolidationWeighted:
		return true
	default:
		return false
	}
}

// Config parameterizes a single resolve() run. See SPEC_FULL.md §6.
type Config struct {
	EntitySimilarityThreshold     float64             `json:"entity_similarity_threshold"`
	EntityAcronymThreshold        float64             `json:"entity_acronym_threshold"`
	EnableAcronymMatching         bool                `json:"enable_acronym_matching"`
	ConnectionSimilarityThreshold float64             `json:"connection_similarity_threshold"`
	DescriptionWeight             float64             `json:"description_weight"`
	NameWeight                    float64             `json:"name_weight"`
	EnableTransitiveDiscovery     bool                `json:"enable_transitive_discovery"`
	EnableDomainRules             bool                `json:"enable_domain_rules"`
	ConfidenceConsolidationMethod ConsolidationMethod `json:"confidence_consolidation_method"`
	MinDiscoveryConfidence        float64             `json:"min_discovery_confidence"`
	MaxDiscoveriesPerRun          int                 `json:"max_discoveries_per_run"`
}

// DefaultConfig returns the §6 default configuration.
func DefaultConfig() Config {
	return Config{
		EntitySimilarityThreshold:     80.0,
		EntityAcronymThreshold:        98.0,
		EnableAcronymMatching:         true,
		ConnectionSimilarityThreshold: 0.6,
		DescriptionWeight:             0.4,
		NameWeight:                    0.6,
		EnableTransitiveDiscovery:     true,
		EnableDomainRules:             true,
		ConfidenceConsolidationMethod: ConsolidationMax,
		MinDiscoveryConfidence:        0.5,
		MaxDiscoveriesPerRun:          1000,
	}
}

// Validate checks the configuration against §7's "Configuration error" class.
func (c Config) Validate() error {
	if c.EntitySimilarityThreshold < 0 || c.EntitySimilarityThreshold > 100 {
		return NewConfigError("entity_similarity_threshold must be in [0,100]")
	}
	if c.EntityAcronymThreshold < 0 || c.EntityAcronymThreshold > 100 {
		return NewConfigError("entity_acronym_threshold must be in [0,100]")
	}
	if c.ConnectionSimilarityThreshold < 0 || c.ConnectionSimilarityThreshold > 1 {
		return NewConfigError("connection_similarity_threshold must be in [0,1]")
	}
	if c.DescriptionWeight < 0 || c.NameWeight < 0 {
		return NewConfigError("description_weight and name_weight must be non-negative")
	}
	if c.MinDiscoveryConfidence < 0 || c.MinDiscoveryConfidence > 1 {
		return NewConfigError("min_discovery_confidence must be in [0,1]")
	}
	if c.MaxDiscoveriesPerRun < 0 {
		return NewConfigError("max_discoveries_per_run must be non-negative")
	}
	if !c.ConfidenceConsolidationMethod.IsValid() {
		return NewConfigError("unknown confidence_consolidation_method: " + string(c.ConfidenceConsolidationMethod))
	}
	return nil
}
