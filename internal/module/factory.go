package module

// Factory constructs a module from its config.
type Factory func(cfg Config) (Module, error)

// Factories maps module ids to constructors.
type Factories map[string]Factory

// DefaultFactories returns a fresh map of the built-in modules.
// Callers may add entries without affecting other registries.
func DefaultFactories() Factories {
	return Factories{
		ProofID:   NewProof,
		AssetID:   NewAsset,
		PublishID: NewPublish,
	}
}
