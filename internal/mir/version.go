package mir

// Version constants for the pickled MIR format.
const (
	// Magic opens every pickled MIR file.
	Magic = "MIR\x00"

	// FormatName is the first header field.
	FormatName = "morphir-mir"

	// SchemaVersion is the node schema version written in the header.
	// Decoders reject any other version.
	SchemaVersion = 1

	// SDKModule is the module holding builtin types and prelude values.
	SDKModule = "morphir.sdk"
)

// Header flags. None are defined for schema version 1.
const (
	FlagsNone uint64 = 0
)
