package types

// Version is the canonical project version.
// The CLI, the batch report schema, and the exporter summary contract
// share this version per the lockstep versioning policy.
const Version = "0.3.0"
