package registry

const (
	CodeRegistryFrozen    = "REGISTRY_FROZEN"
	CodeDuplicateVerb     = "REGISTRY_DUPLICATE_VERB"
	CodeInvalidDescriptor = "REGISTRY_INVALID_DESCRIPTOR"
)
