package record

// Version constants stamped on journal records.
const (
	// SchemaVersion is the journal record schema version.
	SchemaVersion = "1"

	// EngineVersion is the scriptlock engine version.
	EngineVersion = "0.1.0"
)
